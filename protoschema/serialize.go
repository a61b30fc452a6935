package protoschema

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FileDescriptorSet returns all files in the schema, sorted so that every
// file comes after the files it imports. The primary file is last unless the
// schema was parsed from a set whose primary file is imported by other files
// in the set. The returned value is a copy, so callers may freely modify it.
func (s *Schema) FileDescriptorSet() *descriptorpb.FileDescriptorSet {
	set := &descriptorpb.FileDescriptorSet{File: make([]*descriptorpb.FileDescriptorProto, len(s.files))}
	for i, fd := range s.files {
		set.File[i] = proto.Clone(fd).(*descriptorpb.FileDescriptorProto)
	}
	return set
}

// Bytes returns the schema serialized as a google.protobuf.FileDescriptorSet.
// The output is deterministic: the same schema always produces the same
// bytes. It can be read by Parse and by other protobuf tools.
func (s *Schema) Bytes() ([]byte, error) {
	set := &descriptorpb.FileDescriptorSet{File: s.files}
	return proto.MarshalOptions{Deterministic: true}.Marshal(set)
}

// String returns the schema's files, in the protobuf text format.
func (s *Schema) String() string {
	set := &descriptorpb.FileDescriptorSet{File: s.files}
	return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Format(set)
}

// Parse returns a schema for the given bytes, which must be a serialized
// google.protobuf.FileDescriptorSet that contains the transitive closure of
// its files' imports. The last file in the set is the schema's primary file.
func Parse(data []byte) (*Schema, error) {
	return Options{}.Parse(data)
}

// Parse returns a schema for the given serialized file descriptor set, using
// these options.
func (opts Options) Parse(data []byte) (*Schema, error) {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescriptorSet, err)
	}
	return opts.FromFileDescriptorSet(&set)
}

// ParseReader is like Parse except that it reads the serialized descriptor
// set from the given reader. Errors reading from r are returned as is, so
// they do not wrap ErrInvalidInput.
func ParseReader(r io.Reader) (*Schema, error) {
	return Options{}.ParseReader(r)
}

// ParseReader is like Parse except that it reads the serialized descriptor
// set from the given reader.
func (opts Options) ParseReader(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return opts.Parse(data)
}

// FromFileDescriptorSet returns a schema for the files in the given set. The
// set must contain the transitive closure of its files' imports. The last file
// in the set is the schema's primary file. The given set is not retained or
// modified.
func FromFileDescriptorSet(set *descriptorpb.FileDescriptorSet) (*Schema, error) {
	return Options{}.FromFileDescriptorSet(set)
}

// FromFileDescriptorSet returns a schema for the files in the given set,
// using these options.
func (opts Options) FromFileDescriptorSet(set *descriptorpb.FileDescriptorSet) (*Schema, error) {
	if len(set.GetFile()) == 0 {
		return nil, fmt.Errorf("%w: set contains no files", ErrMalformedDescriptorSet)
	}
	files := make([]*descriptorpb.FileDescriptorProto, len(set.GetFile()))
	names := make(map[string]struct{}, len(files))
	for i, fd := range set.GetFile() {
		if fd.GetName() == "" {
			return nil, fmt.Errorf("%w: file at index %d has no name", ErrMalformedDescriptorSet, i)
		}
		if _, ok := names[fd.GetName()]; ok {
			return nil, fmt.Errorf("%w: file %q appears in set more than once", ErrMalformedDescriptorSet, fd.GetName())
		}
		names[fd.GetName()] = struct{}{}
		files[i] = proto.Clone(fd).(*descriptorpb.FileDescriptorProto)
	}
	return opts.link(files, files[len(files)-1].GetName(), false)
}
