package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "usersvc.Dispatcher"
	CallMethod  = "/" + ServiceName + "/Call"
)

// DispatcherServer is the server API for the usersvc.Dispatcher service.
// Requests carry method, path, query and body fields; responses are the
// envelope as a Struct.
type DispatcherServer interface {
	Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterDispatcherServer(s grpc.ServiceRegistrar, srv DispatcherServer) {
	s.RegisterService(&dispatcherServiceDesc, srv)
}

var dispatcherServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DispatcherServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "usersvc/dispatcher.proto",
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DispatcherServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CallMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DispatcherServer).Call(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// DispatcherClient is the client API for the usersvc.Dispatcher service.
type DispatcherClient struct {
	cc grpc.ClientConnInterface
}

func NewDispatcherClient(cc grpc.ClientConnInterface) *DispatcherClient {
	return &DispatcherClient{cc: cc}
}

func (c *DispatcherClient) Call(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CallMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
