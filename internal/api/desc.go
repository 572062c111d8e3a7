package api

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/clipstash/internal/hub"
)

const serviceName = "clipstash.v1.HistoryService"

// HistoryServer is the server API for the history service.
type HistoryServer interface {
	Copy(context.Context, *CopyRequest) (*CopyResponse, error)
	Recopy(context.Context, *RecopyRequest) (*RecopyResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	Days(context.Context, *DaysRequest) (*DaysResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Activate(context.Context, *ActivateRequest) (*ActivateResponse, error)
	Prune(context.Context, *PruneRequest) (*PruneResponse, error)
	Watch(*WatchRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*hub.Event) error
	Context() context.Context
}

type watchServer struct {
	grpc.ServerStream
}

func (s *watchServer) Send(ev *hub.Event) error { return s.ServerStream.SendMsg(ev) }

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

// unary builds the MethodDesc for one request/response method.
func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HistoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(HistoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes HistoryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Copy", HistoryServer.Copy),
		unary("Recopy", HistoryServer.Recopy),
		unary("List", HistoryServer.List),
		unary("Search", HistoryServer.Search),
		unary("Days", HistoryServer.Days),
		unary("Status", HistoryServer.Status),
		unary("Activate", HistoryServer.Activate),
		unary("Prune", HistoryServer.Prune),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(HistoryServer).Watch(in, &watchServer{stream})
			},
		},
	},
	Metadata: "clipstash/v1/history",
}
