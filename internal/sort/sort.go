// Package sort provides a topological sort for file descriptor protos.
package sort

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"
)

// SortFiles topologically sorts the given files in place, so that every file
// appears after all of the files it imports. Files with no ordering constraint
// between them keep their relative order.
//
// An error is returned if the given slice contains more than one file with the
// same name or if a file imports a file that is not present in the slice.
// Import cycles are not reported here: the descriptor pool rejects them when
// the files are linked.
func SortFiles(files []*descriptorpb.FileDescriptorProto) error {
	byName := make(map[string]*descriptorpb.FileDescriptorProto, len(files))
	for _, fd := range files {
		if _, ok := byName[fd.GetName()]; ok {
			return fmt.Errorf("duplicate file %q", fd.GetName())
		}
		byName[fd.GetName()] = fd
	}

	sorted := make([]*descriptorpb.FileDescriptorProto, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	var visit func(fd *descriptorpb.FileDescriptorProto) error
	visit = func(fd *descriptorpb.FileDescriptorProto) error {
		if _, ok := seen[fd.GetName()]; ok {
			return nil
		}
		seen[fd.GetName()] = struct{}{}
		for _, dep := range fd.GetDependency() {
			depFile := byName[dep]
			if depFile == nil {
				return fmt.Errorf("file %q imports %q, but %q is not present", fd.GetName(), dep, dep)
			}
			if err := visit(depFile); err != nil {
				return err
			}
		}
		sorted = append(sorted, fd)
		return nil
	}
	for _, fd := range files {
		if err := visit(fd); err != nil {
			return err
		}
	}
	copy(files, sorted)
	return nil
}
