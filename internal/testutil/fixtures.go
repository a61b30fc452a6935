// Package testutil contains fixtures shared by the tests of other packages.
package testutil

import (
	"context"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// PersonProto defines a message with nested types, in the "person" package.
const PersonProto = `syntax = "proto2";

package person;

// A person in the address book.
message Person {
  required int32 id = 1;
  required string name = 2;
  optional string email = 3;

  enum PhoneType {
    MOBILE = 0;
    HOME = 1;
    WORK = 2;
  }

  message PhoneNumber {
    required string number = 1;
    optional PhoneType type = 2 [default = HOME];
  }

  repeated PhoneNumber phone = 4;
}
`

// Schema3Proto has no imports.
const Schema3Proto = `syntax = "proto2";

package schema3;

message Msg3 {
  optional int32 id = 1;
  optional string name = 2;
}
`

// Schema2Proto imports schema3.proto.
const Schema2Proto = `syntax = "proto2";

package schema2;

import "schema3.proto";

message Msg2 {
  optional int32 id = 1;
  optional schema3.Msg3 msg3 = 2;
}
`

// Schema1Proto imports schema2.proto (and thus, indirectly, schema3.proto)
// and person.proto.
const Schema1Proto = `syntax = "proto2";

package schema1;

import "schema2.proto";
import "person.proto";

message Msg1 {
  optional int32 id = 1;
  optional schema2.Msg2 msg2 = 2;
  repeated person.Person people = 3;
}
`

// DirectoryProto defines a service whose methods use messages from
// person.proto.
const DirectoryProto = `syntax = "proto2";

package directory;

import "person.proto";

message LookupRequest {
  optional int32 id = 1;
}

service Directory {
  rpc Lookup(LookupRequest) returns (person.Person);
  rpc Watch(LookupRequest) returns (stream person.Person);
}
`

// Sources contains all of the fixture files, keyed by path.
var Sources = map[string]string{
	"directory.proto": DirectoryProto,
	"person.proto":    PersonProto,
	"schema1.proto":   Schema1Proto,
	"schema2.proto":   Schema2Proto,
	"schema3.proto":   Schema3Proto,
}

// Compile compiles the named files from the given sources and returns a
// descriptor set with the named files and all of their dependencies,
// dependencies first, like the output of "protoc --include_imports". Files
// that are not in sources can be imported if they are one of the standard
// imports (like "google/protobuf/timestamp.proto").
func Compile(t testing.TB, sources map[string]string, names ...string) *descriptorpb.FileDescriptorSet {
	t.Helper()
	compiler := &protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(sources),
		}),
	}
	results, err := compiler.Compile(context.Background(), names...)
	require.NoError(t, err)

	set := &descriptorpb.FileDescriptorSet{}
	seen := map[string]struct{}{}
	var addFile func(fd protoreflect.FileDescriptor)
	addFile = func(fd protoreflect.FileDescriptor) {
		if _, ok := seen[fd.Path()]; ok {
			return
		}
		seen[fd.Path()] = struct{}{}
		imports := fd.Imports()
		for i, length := 0, imports.Len(); i < length; i++ {
			addFile(imports.Get(i).FileDescriptor)
		}
		set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, res := range results {
		addFile(res)
	}
	return set
}

// Marshal returns the deterministic binary encoding of the given set.
func Marshal(t testing.TB, set *descriptorpb.FileDescriptorSet) []byte {
	t.Helper()
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(set)
	require.NoError(t, err)
	return data
}

// WithoutImports returns a copy of the given set that contains only the
// files with the given names. Imports of those files are not included.
func WithoutImports(set *descriptorpb.FileDescriptorSet, names ...string) *descriptorpb.FileDescriptorSet {
	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}
	ret := &descriptorpb.FileDescriptorSet{}
	for _, fd := range set.GetFile() {
		if _, ok := keep[fd.GetName()]; ok {
			ret.File = append(ret.File, proto.Clone(fd).(*descriptorpb.FileDescriptorProto))
		}
	}
	return ret
}
