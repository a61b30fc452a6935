package grpcschema_test

import (
	"context"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"

	"github.com/jhump/protodynamic/grpcschema"
	"github.com/jhump/protodynamic/internal/testutil"
	"github.com/jhump/protodynamic/protoschema"
	"github.com/jhump/protodynamic/protosource"
)

func newConn(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()

	const size = 1024 * 1024
	l := bufconn.Listen(size)
	s := grpc.NewServer()
	register(s)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(s.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return l.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func healthServer(s *grpc.Server) {
	healthgrpc.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
}

func TestFetch(t *testing.T) {
	cc := newConn(t, healthServer)

	for _, symbol := range []string{"grpc.health.v1.Health", "grpc.health.v1.Health.Check", "grpc.health.v1.HealthCheckResponse.ServingStatus"} {
		t.Run(symbol, func(t *testing.T) {
			schema, err := grpcschema.Fetch(context.Background(), cc, symbol)
			require.NoError(t, err)

			primary := schema.Primary()
			require.Equal(t, healthgrpc.File_grpc_health_v1_health_proto.Path(), primary.Path())
			require.NotNil(t, primary.Services().ByName("Health"))
			require.NotNil(t, schema.MessageDescriptor("grpc.health.v1.HealthCheckRequest"))
			require.NotNil(t, schema.EnumValue("grpc.health.v1.HealthCheckResponse.ServingStatus", "SERVING"))

			want := protodesc.ToFileDescriptorProto(healthgrpc.File_grpc_health_v1_health_proto)
			files := schema.FileDescriptorSet().GetFile()
			if diff := cmp.Diff(want, files[len(files)-1], protocmp.Transform()); diff != "" {
				t.Errorf("unexpected file from server (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetch_AllServices(t *testing.T) {
	cc := newConn(t, healthServer)

	schema, err := grpcschema.Fetch(context.Background(), cc)
	require.NoError(t, err)
	for _, name := range []protoreflect.FullName{
		"grpc.health.v1.Health",
		"grpc.reflection.v1.ServerReflection",
		"grpc.reflection.v1alpha.ServerReflection",
	} {
		d, err := schema.Pool().FindDescriptorByName(name)
		require.NoError(t, err, "service %q", name)
		_, ok := d.(protoreflect.ServiceDescriptor)
		require.True(t, ok)
	}
	// services are sorted, and the file of the last one is the primary file
	require.Equal(t, protoreflect.FullName("grpc.reflection.v1alpha.ServerReflection"),
		schema.Primary().Services().Get(0).FullName())
	// defined in both reflection files, so only the fully-qualified names work
	require.Nil(t, schema.MessageDescriptor("ServerReflectionRequest"))
	require.NotNil(t, schema.MessageDescriptor("grpc.reflection.v1.ServerReflectionRequest"))
}

func TestFetch_NotFound(t *testing.T) {
	cc := newConn(t, healthServer)

	_, err := grpcschema.Fetch(context.Background(), cc, "grpc.health.v1.Health", "foo.Bar")
	require.ErrorIs(t, err, grpcschema.ErrNotFound)
	require.ErrorIs(t, err, protoschema.ErrInvalidInput)
	require.ErrorContains(t, err, `"foo.Bar"`)
}

func TestFetch_V1AlphaOnly(t *testing.T) {
	cc := newConn(t, func(s *grpc.Server) {
		healthgrpc.RegisterHealthServer(s, health.NewServer())
		refv1alpha.RegisterServerReflectionServer(s, reflection.NewServer(reflection.ServerOptions{Services: s}))
	})

	schema, err := grpcschema.Options{Concurrency: 1}.Fetch(context.Background(), cc, "grpc.health.v1.Health")
	require.NoError(t, err)
	require.NotNil(t, schema.MessageDescriptor("grpc.health.v1.HealthCheckRequest"))
}

func TestFetch_NoReflection(t *testing.T) {
	cc := newConn(t, func(s *grpc.Server) {
		healthgrpc.RegisterHealthServer(s, health.NewServer())
	})

	_, err := grpcschema.Fetch(context.Background(), cc, "grpc.health.v1.Health")
	require.Error(t, err)
	require.NotErrorIs(t, err, protoschema.ErrInvalidInput)
}

func TestRegisterReflection(t *testing.T) {
	want, err := protosource.Compile(context.Background(), testutil.Sources, "directory.proto")
	require.NoError(t, err)
	cc := newConn(t, func(s *grpc.Server) {
		grpcschema.RegisterReflection(s, want)
	})

	got, err := grpcschema.Fetch(context.Background(), cc)
	require.NoError(t, err)
	require.Equal(t, "directory.proto", got.Primary().Path())
	if diff := cmp.Diff(want.FileDescriptorSet(), got.FileDescriptorSet(), protocmp.Transform()); diff != "" {
		t.Errorf("unexpected difference after fetch (-want +got):\n%s", diff)
	}
	watch := got.Primary().Services().ByName("Directory").Methods().ByName("Watch")
	require.True(t, watch.IsStreamingServer())
	require.Equal(t, got.MessageDescriptor("person.Person"), watch.Output())

	// the primary file is the one with the last symbol, even when it is a
	// dependency of another requested file
	for _, concurrency := range []int{1, 2} {
		got, err = grpcschema.Options{Concurrency: concurrency}.Fetch(context.Background(), cc,
			"directory.LookupRequest", "person.Person.PhoneNumber")
		require.NoError(t, err)
		require.Equal(t, "person.proto", got.Primary().Path())
		require.Len(t, got.Files(), 2)
	}

	_, err = grpcschema.Fetch(context.Background(), cc, "grpc.health.v1.Health")
	require.ErrorIs(t, err, grpcschema.ErrNotFound)
}

func TestReflectionServerOptions(t *testing.T) {
	schema, err := protosource.Compile(context.Background(), testutil.Sources, "directory.proto")
	require.NoError(t, err)

	opts := grpcschema.ReflectionServerOptions(schema)
	info := opts.Services.GetServiceInfo()
	require.Len(t, info, 1)
	directory := info["directory.Directory"]
	require.Equal(t, "directory.proto", directory.Metadata)
	require.Equal(t, []grpc.MethodInfo{
		{Name: "Lookup"},
		{Name: "Watch", IsServerStream: true},
	}, directory.Methods)

	fd, err := opts.DescriptorResolver.FindFileByPath("person.proto")
	require.NoError(t, err)
	require.Equal(t, protoreflect.FullName("person"), fd.Package())
}
