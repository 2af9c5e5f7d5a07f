package services

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

func dialPlanning(t *testing.T, f *fixture) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterPlanningServer(server, NewGRPCServer(f.svc))
	reflection.Register(server)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPC_PlanRoute(t *testing.T) {
	conn := dialPlanning(t, newFixture(t, staticStore(t, testSnapshot()), nil))

	in, err := structpb.NewStruct(map[string]any{"origin": "Salt Lake City", "destination": "Park City", "alternatives": 1})
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), "/saferoute.v1.PlanningService/PlanRoute", in, out))

	resp := out.AsMap()
	routes, ok := resp["routes"].([]any)
	require.True(t, ok)
	assert.Len(t, routes, 1)
	recommended := resp["recommended_route"].(map[string]any)
	assert.Equal(t, "hazardous", recommended["safety"].(map[string]any)["rating"])
}

func TestGRPC_PlanRouteErrors(t *testing.T) {
	f := newFixture(t, staticStore(t, testSnapshot()), nil)
	f.routes.routes = nil
	conn := dialPlanning(t, f)

	tests := []struct {
		name string
		in   map[string]any
		code codes.Code
	}{
		{"unknown place", map[string]any{"origin": "Atlantis", "destination": "Park City"}, codes.InvalidArgument},
		{"bad alternatives type", map[string]any{"origin": "Salt Lake City", "destination": "Park City", "alternatives": "two"}, codes.InvalidArgument},
		{"no route", map[string]any{"origin": "Salt Lake City", "destination": "Park City"}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := structpb.NewStruct(tt.in)
			require.NoError(t, err)

			err = conn.Invoke(context.Background(), "/saferoute.v1.PlanningService/PlanRoute", in, &structpb.Struct{})
			assert.Equal(t, tt.code, status.Code(err), "%v", err)
		})
	}
}

func TestGRPC_ExportPlanKML(t *testing.T) {
	conn := dialPlanning(t, newFixture(t, staticStore(t, testSnapshot()), nil))

	in, err := structpb.NewStruct(map[string]any{"origin": "Salt Lake City", "destination": "Park City"})
	require.NoError(t, err)

	out := &httpbody.HttpBody{}
	require.NoError(t, conn.Invoke(context.Background(), "/saferoute.v1.PlanningService/ExportPlanKML", in, out))
	assert.Equal(t, kmlContentType, out.ContentType)
	assert.Contains(t, string(out.Data), "<kml")
}

func TestGRPC_DescriptorRegistered(t *testing.T) {
	desc, err := protoregistry.GlobalFiles.FindDescriptorByName("saferoute.v1.PlanningService.ExportPlanKML")
	require.NoError(t, err)
	assert.Equal(t, PlanningFileDescriptor.Path(), desc.ParentFile().Path())

	service := PlanningFileDescriptor.Services().ByName("PlanningService")
	require.NotNil(t, service)
	assert.Equal(t, "google.protobuf.Struct", string(service.Methods().ByName("PlanRoute").Output().FullName()))
	assert.Equal(t, "google.api.HttpBody", string(service.Methods().ByName("ExportPlanKML").Output().FullName()))
}

func TestGRPC_ReflectionDescribesService(t *testing.T) {
	conn := dialPlanning(t, newFixture(t, staticStore(t, testSnapshot()), nil))

	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: "saferoute.v1.PlanningService",
		},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)
	require.NoError(t, stream.CloseSend())

	files := resp.GetFileDescriptorResponse().GetFileDescriptorProto()
	require.NotEmpty(t, files, "error response: %v", resp.GetErrorResponse())

	var names []string
	for _, raw := range files {
		fdp := &descriptorpb.FileDescriptorProto{}
		require.NoError(t, proto.Unmarshal(raw, fdp))
		names = append(names, fdp.GetName())
		if fdp.GetName() == "saferoute/v1/planning.proto" {
			require.Len(t, fdp.GetService(), 1)
			assert.Len(t, fdp.GetService()[0].GetMethod(), 2)
		}
	}
	assert.Contains(t, names, "saferoute/v1/planning.proto")
}
