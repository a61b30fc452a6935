// Package protoresolve contains the descriptor pool used by schemas: an
// immutable registry of linked file descriptors, built all at once from a
// closure of *descriptorpb.FileDescriptorProto values.
//
// The core API offers protoregistry.Files for descriptors and
// protoregistry.Types for types. When every type is dynamic, using both means
// registering everything twice. The Registry type in this package registers
// descriptors once, and its AsTypeResolver method turns the result into a
// type resolver, too, with all dynamic types (created with the
// "google.golang.org/protobuf/types/dynamicpb" package). That resolver can be
// used with the protojson and prototext packages, for example to format
// google.protobuf.Any messages whose payload is a dynamic type.
package protoresolve
