package simulation

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "slotsim.simulator.v1.SimulationService"

const (
	runSimulationMethod = "/" + ServiceName + "/RunSimulation"
	getRunMethod        = "/" + ServiceName + "/GetRun"
	listRunsMethod      = "/" + ServiceName + "/ListRuns"
	listSessionsMethod  = "/" + ServiceName + "/ListSessions"
	listSettingsMethod  = "/" + ServiceName + "/ListSettings"
)

// SimulationServiceServer is the server contract. Every message is a
// google.protobuf.Struct whose fields are documented on the codec helpers.
type SimulationServiceServer interface {
	RunSimulation(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSettings(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSimulationServiceServer registers srv on s.
func RegisterSimulationServiceServer(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&SimulationServiceDesc, srv)
}

// SimulationServiceDesc describes the simulation service for grpc.Server.
// Messages are google.protobuf.Struct values and no file descriptor is
// registered, so server reflection lists the service name but cannot
// describe its methods.
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRun", Handler: unaryHandler(getRunMethod, SimulationServiceServer.GetRun)},
		{MethodName: "ListRuns", Handler: unaryHandler(listRunsMethod, SimulationServiceServer.ListRuns)},
		{MethodName: "ListSessions", Handler: unaryHandler(listSessionsMethod, SimulationServiceServer.ListSessions)},
		{MethodName: "ListSettings", Handler: unaryHandler(listSettingsMethod, SimulationServiceServer.ListSettings)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "RunSimulation",
			Handler:       runSimulationHandler,
			ServerStreams: true,
		},
	},
}

type unaryMethod func(SimulationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(SimulationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(SimulationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func runSimulationHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SimulationServiceServer).RunSimulation(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}
