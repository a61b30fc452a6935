package protoschema

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jhump/protodynamic/protoresolve"
)

// Runtime provides the two capabilities a schema needs from a protobuf
// runtime: linking descriptor protos into a pool of descriptors and creating
// messages for a descriptor.
type Runtime interface {
	// NewPool links the given files. They are sorted so that every file
	// appears after the files it imports.
	NewPool(files []*descriptorpb.FileDescriptorProto) (protoresolve.DescriptorPool, error)
	// NewMessage returns a new, empty message of the given type.
	NewMessage(md protoreflect.MessageDescriptor) protoreflect.Message
}

// DefaultRuntime links files into a *protoresolve.Registry and creates
// dynamic messages, using the "google.golang.org/protobuf/types/dynamicpb"
// package.
var DefaultRuntime Runtime = dynamicRuntime{}

type dynamicRuntime struct{}

func (dynamicRuntime) NewPool(files []*descriptorpb.FileDescriptorProto) (protoresolve.DescriptorPool, error) {
	reg, err := protoresolve.NewRegistry(files)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (dynamicRuntime) NewMessage(md protoreflect.MessageDescriptor) protoreflect.Message {
	return dynamicpb.NewMessage(md)
}

// Options includes additional options to use when building or parsing
// schemas. The zero value is ready to use: it is what the package-level
// functions and Builder.Build use.
type Options struct {
	// Runtime links descriptors and creates messages. If nil, DefaultRuntime
	// is used.
	Runtime Runtime
}

func (opts Options) runtime() Runtime {
	if opts.Runtime == nil {
		return DefaultRuntime
	}
	return opts.Runtime
}
