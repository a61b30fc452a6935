// Package protodef contains builders for message and enum definitions that are
// assembled at runtime, without a .proto source file.
//
// Definitions are built in two phases. First, a builder accumulates fields,
// enum values, oneofs, and nested types via fluent method calls. Then a call
// to Build freezes that state into an immutable definition. Once a builder
// has been built, it can no longer be modified: the Try* forms of its methods
// return ErrBuilderFinalized and the other forms panic.
//
// Most mutating methods come in pairs. The form without a "Try" prefix returns the
// builder itself, for method chaining, and panics if the operation fails. The
// "Try" form returns an error instead.
//
// Field types are given as strings. A type is either one of the scalar
// keywords used in the protobuf IDL ("int32", "string", "bytes", etc) or a
// reference to a message or enum type. References may be simple names
// ("PhoneNumber"), dotted paths ("Person.PhoneNumber"), or fully-qualified
// names with a leading dot (".pkg.Person.PhoneNumber"). They are not resolved
// by this package; resolution happens when the definitions are added to a
// schema and the schema is built (see the protoschema package).
package protodef
