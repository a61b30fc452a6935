// Package grpcschema exchanges schemas with gRPC servers, using the server
// reflection service.
//
// Fetch downloads the files that define a set of symbols from a server that
// supports reflection and links them into a protoschema.Schema:
//
//	schema, err := grpcschema.Fetch(ctx, conn, "grpc.health.v1.Health")
//
// Both the v1 and the v1alpha versions of the reflection service are
// supported. The v1 version is tried first.
//
// RegisterReflection does the reverse, publishing a schema via the reflection
// service of a gRPC server.
package grpcschema
