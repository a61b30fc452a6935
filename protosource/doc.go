// Package protosource creates schemas from protobuf source files. It compiles
// the given files, and everything they import, with the
// "github.com/bufbuild/protocompile" package and then links the results into a
// protoschema.Schema.
//
// Files can be read from the file system, relative to a list of import paths,
// or from an in-memory map of sources:
//
//	schema, err := protosource.Compile(ctx, map[string]string{
//	    "person.proto": `syntax = "proto3"; message Person { string name = 1; }`,
//	}, "person.proto")
//
// The standard imports (like "google/protobuf/timestamp.proto") are always
// available, even when they are not in the import paths.
//
// The last file named is the schema's primary file. Other named files, and
// all imported files, are its dependencies. The resulting schema can be
// merged into schemas created with protoschema.Builder.
package protosource
