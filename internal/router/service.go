package router

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "cdnrouter.Router"

const (
	routeMethod      = "/" + serviceName + "/Route"
	getRingMethod    = "/" + serviceName + "/GetRing"
	setWeightMethod  = "/" + serviceName + "/SetWeight"
	addNodeMethod    = "/" + serviceName + "/AddNode"
	removeNodeMethod = "/" + serviceName + "/RemoveNode"
)

// RouterServer is the server API for the Router service.
type RouterServer interface {
	Route(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRing(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetWeight(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRouterServer registers srv on s.
func RegisterRouterServer(s grpc.ServiceRegistrar, srv RouterServer) {
	s.RegisterService(&routerServiceDesc, srv)
}

var routerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RouterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Route",
			Handler: unaryHandler(routeMethod, func(srv RouterServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.Route(ctx, in)
			}),
		},
		{
			MethodName: "GetRing",
			Handler: unaryHandler(getRingMethod, func(srv RouterServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetRing(ctx, in)
			}),
		},
		{
			MethodName: "SetWeight",
			Handler: unaryHandler(setWeightMethod, func(srv RouterServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.SetWeight(ctx, in)
			}),
		},
		{
			MethodName: "AddNode",
			Handler: unaryHandler(addNodeMethod, func(srv RouterServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.AddNode(ctx, in)
			}),
		},
		{
			MethodName: "RemoveNode",
			Handler: unaryHandler(removeNodeMethod, func(srv RouterServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.RemoveNode(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cdnrouter/router.proto",
}

type unaryCall func(srv RouterServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RouterServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RouterServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
