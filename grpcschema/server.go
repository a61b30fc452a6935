package grpcschema

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodynamic/protoresolve"
	"github.com/jhump/protodynamic/protoschema"
)

// RegisterReflection registers the server reflection service, both the v1 and
// the v1alpha versions, with the given registrar. The service describes the
// given schema instead of the services registered with the server: it lists
// every service defined in the schema's files and answers queries for any
// element in the schema.
//
// This allows a schema to be published to clients, like Fetch, that use
// server reflection.
func RegisterReflection(s grpc.ServiceRegistrar, schema *protoschema.Schema) {
	opts := ReflectionServerOptions(schema)
	refv1.RegisterServerReflectionServer(s, reflection.NewServerV1(opts))
	refv1alpha.RegisterServerReflectionServer(s, reflection.NewServer(opts))
}

// ReflectionServerOptions returns options for creating a server reflection
// service that describes the given schema.
func ReflectionServerOptions(schema *protoschema.Schema) reflection.ServerOptions {
	pool := schema.Pool()
	return reflection.ServerOptions{
		Services:           schemaServices{schema: schema},
		DescriptorResolver: pool,
		ExtensionResolver:  protoresolve.TypesFromDescriptorPool(pool),
	}
}

type schemaServices struct {
	schema *protoschema.Schema
}

func (s schemaServices) GetServiceInfo() map[string]grpc.ServiceInfo {
	info := map[string]grpc.ServiceInfo{}
	for _, fd := range s.schema.Files() {
		services := fd.Services()
		for i, length := 0, services.Len(); i < length; i++ {
			svc := services.Get(i)
			info[string(svc.FullName())] = grpc.ServiceInfo{
				Methods:  methodInfo(svc.Methods()),
				Metadata: fd.Path(),
			}
		}
	}
	return info
}

func methodInfo(methods protoreflect.MethodDescriptors) []grpc.MethodInfo {
	info := make([]grpc.MethodInfo, methods.Len())
	for i := range info {
		md := methods.Get(i)
		info[i] = grpc.MethodInfo{
			Name:           string(md.Name()),
			IsClientStream: md.IsStreamingClient(),
			IsServerStream: md.IsStreamingServer(),
		}
	}
	return info
}
