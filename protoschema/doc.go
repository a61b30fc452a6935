// Package protoschema assembles protobuf schemas at runtime and provides
// reflective access to the message and enum types they define.
//
// A Schema is a closed set of file descriptors: one primary file plus every
// file it depends on, linked into a descriptor pool. Schemas are created with
// a Builder, from message and enum definitions built with the protodef
// package, or by parsing a serialized google.protobuf.FileDescriptorSet (the
// format produced by "protoc --include_imports --descriptor_set_out").
//
// Schemas can be combined. Adding one schema to the builder of another merges
// all of its files, so that types in the new primary file can refer to types
// defined in the merged schema:
//
//	common, _ := protoschema.NewBuilder().
//		SetName("common.proto").
//		SetPackage("common").
//		AddMessageDefinition(money).
//		Build()
//	orders, err := protoschema.NewBuilder().
//		SetName("orders.proto").
//		SetPackage("orders").
//		AddSchema(common).
//		AddMessageDefinition(order). // refers to "common.Money"
//		Build()
//
// # Names
//
// Types in a schema can be looked up by fully-qualified name (with or without
// a leading dot) or by short name. A type's short name is its name relative
// to its file's package, like "Person" or "Person.PhoneNumber". Since merged
// files may be in different packages, a short name may be ambiguous: it is
// only usable when exactly one message or enum in the whole schema has it.
// Fully-qualified names always work.
//
// # Type references
//
// Field types that refer to other messages or enums are resolved when the
// schema is built, using the same scoping rules as the protobuf compiler:
// a relative name is searched for in the field's enclosing message, then in
// the enclosing message's parent, and so on out to the file's package and its
// parent packages. Only types defined in the primary file or in files it
// imports are visible. Every merged schema is implicitly imported, and
// additional imports can be named with Builder.AddDependency.
//
// # Errors
//
// Every error that is caused by bad input wraps ErrInvalidInput, along with
// one sentinel that describes the kind of problem. Use errors.Is to test for
// them. Looking up a name that does not exist is not an error: lookup methods
// return nil instead.
package protoschema
