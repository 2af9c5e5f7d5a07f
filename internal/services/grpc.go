package services

import (
	"context"
	"encoding/json"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// planningProtoFile is the descriptor path gRPC reflection serves for the
// planning service
const planningProtoFile = "saferoute/v1/planning.proto"

// PlanningFileDescriptor describes saferoute/v1/planning.proto. It is
// registered with the global registry so reflection clients can describe
// the service and its methods.
var PlanningFileDescriptor protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String(planningProtoFile),
		Package: proto.String("saferoute.v1"),
		Dependency: []string{
			"google/protobuf/struct.proto",
			"google/api/httpbody.proto",
		},
		Syntax: proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("PlanningService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{
					Name:       proto.String("PlanRoute"),
					InputType:  proto.String(".google.protobuf.Struct"),
					OutputType: proto.String(".google.protobuf.Struct"),
				},
				{
					Name:       proto.String("ExportPlanKML"),
					InputType:  proto.String(".google.protobuf.Struct"),
					OutputType: proto.String(".google.api.HttpBody"),
				},
			},
		}},
	}, protoregistry.GlobalFiles)
	if err != nil {
		panic("saferoute: invalid planning descriptor: " + err.Error())
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic("saferoute: failed to register planning descriptor: " + err.Error())
	}
	PlanningFileDescriptor = fd
}

// PlanningServer is the gRPC surface of PlanningService. Requests and
// responses are the same JSON documents the HTTP API uses, carried as
// google.protobuf.Struct.
type PlanningServer interface {
	PlanRoute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportPlanKML(context.Context, *structpb.Struct) (*httpbody.HttpBody, error)
}

// PlanningServiceDesc describes saferoute.v1.PlanningService
var PlanningServiceDesc = grpc.ServiceDesc{
	ServiceName: "saferoute.v1.PlanningService",
	HandlerType: (*PlanningServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlanRoute", Handler: planRouteHandler},
		{MethodName: "ExportPlanKML", Handler: exportPlanKMLHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: planningProtoFile,
}

// RegisterPlanningServer registers srv on s
func RegisterPlanningServer(s grpc.ServiceRegistrar, srv PlanningServer) {
	s.RegisterService(&PlanningServiceDesc, srv)
}

// GRPCServer adapts PlanningService to PlanningServer
type GRPCServer struct {
	svc *PlanningService
}

// NewGRPCServer creates a new GRPCServer
func NewGRPCServer(svc *PlanningService) *GRPCServer {
	return &GRPCServer{svc: svc}
}

// PlanRoute implements PlanningServer
func (g *GRPCServer) PlanRoute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := planRequestFromStruct(in)
	if err != nil {
		return nil, err
	}

	resp, err := g.svc.Plan(ctx, req)
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// ExportPlanKML implements PlanningServer
func (g *GRPCServer) ExportPlanKML(ctx context.Context, in *structpb.Struct) (*httpbody.HttpBody, error) {
	req, err := planRequestFromStruct(in)
	if err != nil {
		return nil, err
	}

	data, err := g.svc.ExportKML(ctx, req)
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}
	return &httpbody.HttpBody{ContentType: kmlContentType, Data: data}, nil
}

func planRequestFromStruct(in *structpb.Struct) (PlanRequest, error) {
	var req PlanRequest
	data, err := protojson.Marshal(in)
	if err != nil {
		return req, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return req, nil
}

func planRouteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlanningServer).PlanRoute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/saferoute.v1.PlanningService/PlanRoute",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlanningServer).PlanRoute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func exportPlanKMLHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlanningServer).ExportPlanKML(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/saferoute.v1.PlanningService/ExportPlanKML",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlanningServer).ExportPlanKML(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
