// Command protoschema inspects, merges, and creates protobuf schemas, stored
// as serialized google.protobuf.FileDescriptorSet files.
package main

import (
	"context"
	"os"
)

func main() {
	gs := newGlobalState(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(newRootCommand(gs).execute())
}
