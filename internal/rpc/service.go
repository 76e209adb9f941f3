// Package rpc exposes stateless chart composition over gRPC. Messages are
// google.protobuf.Struct documents carrying the same JSON shapes as the HTTP
// API.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName      = "stackexplorer.v1.ChartService"
	BuildChartMethod = "/" + ServiceName + "/BuildChart"
)

// ChartServiceServer is the server API for ChartService.
type ChartServiceServer interface {
	BuildChart(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ChartServiceDesc describes ChartService for grpc.Server.RegisterService.
var ChartServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "BuildChart",
			Handler:    buildChartHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stackexplorer/v1/chart.proto",
}

func buildChartHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChartServiceServer).BuildChart(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: BuildChartMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChartServiceServer).BuildChart(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterService registers server on grpcServer.
func RegisterService(grpcServer grpc.ServiceRegistrar, server ChartServiceServer) {
	grpcServer.RegisterService(&ChartServiceDesc, server)
}

// ChartServiceClient calls ChartService over a client connection.
type ChartServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChartServiceClient returns a client using cc.
func NewChartServiceClient(cc grpc.ClientConnInterface) *ChartServiceClient {
	return &ChartServiceClient{cc: cc}
}

// BuildChart calls ChartService/BuildChart.
func (c *ChartServiceClient) BuildChart(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, BuildChartMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
