// Package syncv1 defines the omnipos.sync.v1.SyncService gRPC contract.
// Messages are google.protobuf.Struct so clients can call the service with
// any protobuf runtime and no generated stubs.
package syncv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "omnipos.sync.v1.SyncService"

	TriggerSyncFullMethodName           = "/omnipos.sync.v1.SyncService/TriggerSync"
	GetSyncJobFullMethodName            = "/omnipos.sync.v1.SyncService/GetSyncJob"
	ListSyncJobsFullMethodName          = "/omnipos.sync.v1.SyncService/ListSyncJobs"
	CancelSyncJobFullMethodName         = "/omnipos.sync.v1.SyncService/CancelSyncJob"
	ListSyncLogsFullMethodName          = "/omnipos.sync.v1.SyncService/ListSyncLogs"
	ListPendingSnapshotsFullMethodName  = "/omnipos.sync.v1.SyncService/ListPendingSnapshots"
	ListUnmappedLocationsFullMethodName = "/omnipos.sync.v1.SyncService/ListUnmappedLocations"
)

type SyncServiceServer interface {
	TriggerSync(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSyncJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSyncJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelSyncJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSyncLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingSnapshots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUnmappedLocations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedSyncServiceServer can be embedded for forward compatibility.
type UnimplementedSyncServiceServer struct{}

func (UnimplementedSyncServiceServer) TriggerSync(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TriggerSync not implemented")
}
func (UnimplementedSyncServiceServer) GetSyncJob(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSyncJob not implemented")
}
func (UnimplementedSyncServiceServer) ListSyncJobs(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSyncJobs not implemented")
}
func (UnimplementedSyncServiceServer) CancelSyncJob(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelSyncJob not implemented")
}
func (UnimplementedSyncServiceServer) ListSyncLogs(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSyncLogs not implemented")
}
func (UnimplementedSyncServiceServer) ListPendingSnapshots(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPendingSnapshots not implemented")
}
func (UnimplementedSyncServiceServer) ListUnmappedLocations(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListUnmappedLocations not implemented")
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

type unaryCall func(srv SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SyncServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TriggerSync",
			Handler: unaryHandler(TriggerSyncFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.TriggerSync(ctx, in)
			}),
		},
		{
			MethodName: "GetSyncJob",
			Handler: unaryHandler(GetSyncJobFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.GetSyncJob(ctx, in)
			}),
		},
		{
			MethodName: "ListSyncJobs",
			Handler: unaryHandler(ListSyncJobsFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListSyncJobs(ctx, in)
			}),
		},
		{
			MethodName: "CancelSyncJob",
			Handler: unaryHandler(CancelSyncJobFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.CancelSyncJob(ctx, in)
			}),
		},
		{
			MethodName: "ListSyncLogs",
			Handler: unaryHandler(ListSyncLogsFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListSyncLogs(ctx, in)
			}),
		},
		{
			MethodName: "ListPendingSnapshots",
			Handler: unaryHandler(ListPendingSnapshotsFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListPendingSnapshots(ctx, in)
			}),
		},
		{
			MethodName: "ListUnmappedLocations",
			Handler: unaryHandler(ListUnmappedLocationsFullMethodName, func(s SyncServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListUnmappedLocations(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/sync/v1/sync.proto",
}

type SyncServiceClient interface {
	TriggerSync(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSyncJob(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListSyncJobs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CancelSyncJob(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListSyncLogs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListPendingSnapshots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListUnmappedLocations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc}
}

func (c *syncServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) TriggerSync(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, TriggerSyncFullMethodName, in, opts...)
}

func (c *syncServiceClient) GetSyncJob(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetSyncJobFullMethodName, in, opts...)
}

func (c *syncServiceClient) ListSyncJobs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListSyncJobsFullMethodName, in, opts...)
}

func (c *syncServiceClient) CancelSyncJob(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CancelSyncJobFullMethodName, in, opts...)
}

func (c *syncServiceClient) ListSyncLogs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListSyncLogsFullMethodName, in, opts...)
}

func (c *syncServiceClient) ListPendingSnapshots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListPendingSnapshotsFullMethodName, in, opts...)
}

func (c *syncServiceClient) ListUnmappedLocations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListUnmappedLocationsFullMethodName, in, opts...)
}
