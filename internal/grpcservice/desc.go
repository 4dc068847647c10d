package grpcservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "pastabox.v1.History"

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the MethodDesc for one unary call, the way protoc-gen-go-grpc
// would for a compiled service.
func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(HistoryServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HistoryServer).Watch(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Add", HistoryServer.Add),
		unary("Remove", HistoryServer.Remove),
		unary("Clear", HistoryServer.Clear),
		unary("Toggle", HistoryServer.Toggle),
		unary("SetAutoCapture", HistoryServer.SetAutoCapture),
		unary("CopyOut", HistoryServer.CopyOut),
		unary("Get", HistoryServer.Get),
		unary("List", HistoryServer.List),
		unary("GetDraft", HistoryServer.GetDraft),
		unary("SetDraft", HistoryServer.SetDraft),
		unary("CommitDraft", HistoryServer.CommitDraft),
		unary("Status", HistoryServer.Status),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pastabox/v1/history.proto",
}

// Register registers srv with s.
func Register(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&serviceDesc, srv)
}
