package grpcsched

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "xdao.committee.scheduler.v1.Scheduler"

	methodGetCommittees   = "/" + serviceName + "/GetCommittees"
	methodWatchCommittees = "/" + serviceName + "/WatchCommittees"
)

// SchedulerServer is the server API for the Scheduler gRPC service.
//
// Messages are protobuf well-known types so this package does not require a
// protoc/codegen toolchain:
//   - GetCommittees: BytesValue{contract_id} -> Struct{committees: [...]}
//   - WatchCommittees: Empty -> stream Struct{committee: {...}}
//
// Proto definition: scheduler.proto.
type SchedulerServer interface {
	GetCommittees(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	WatchCommittees(*emptypb.Empty, Scheduler_WatchCommitteesServer) error
}

// UnimplementedSchedulerServer can be embedded to have forward compatible implementations.
type UnimplementedSchedulerServer struct{}

func (UnimplementedSchedulerServer) GetCommittees(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCommittees not implemented")
}
func (UnimplementedSchedulerServer) WatchCommittees(*emptypb.Empty, Scheduler_WatchCommitteesServer) error {
	return status.Error(codes.Unimplemented, "method WatchCommittees not implemented")
}

// RegisterSchedulerServer registers the Scheduler service on a gRPC server.
func RegisterSchedulerServer(s grpc.ServiceRegistrar, srv SchedulerServer) {
	s.RegisterService(&Scheduler_ServiceDesc, srv)
}

// Scheduler_WatchCommitteesServer is the server side of a WatchCommittees stream.
type Scheduler_WatchCommitteesServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type schedulerWatchCommitteesServer struct {
	grpc.ServerStream
}

func (x *schedulerWatchCommitteesServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// SchedulerClient is the client API for the Scheduler gRPC service.
type SchedulerClient interface {
	GetCommittees(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	WatchCommittees(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Scheduler_WatchCommitteesClient, error)
}

// Scheduler_WatchCommitteesClient is the client side of a WatchCommittees stream.
type Scheduler_WatchCommitteesClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type schedulerClient struct{ cc grpc.ClientConnInterface }

func NewSchedulerClient(cc grpc.ClientConnInterface) SchedulerClient {
	return &schedulerClient{cc: cc}
}

func (c *schedulerClient) GetCommittees(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, methodGetCommittees, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) WatchCommittees(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Scheduler_WatchCommitteesClient, error) {
	stream, err := c.cc.NewStream(ctx, &Scheduler_ServiceDesc.Streams[0], methodWatchCommittees, opts...)
	if err != nil {
		return nil, err
	}
	x := &schedulerWatchCommitteesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type schedulerWatchCommitteesClient struct {
	grpc.ClientStream
}

func (x *schedulerWatchCommitteesClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Scheduler_GetCommittees_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServer).GetCommittees(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetCommittees}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServer).GetCommittees(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Scheduler_WatchCommittees_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SchedulerServer).WatchCommittees(in, &schedulerWatchCommitteesServer{stream})
}

// Scheduler_ServiceDesc is the grpc.ServiceDesc for the Scheduler service.
var Scheduler_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SchedulerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCommittees", Handler: _Scheduler_GetCommittees_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchCommittees",
			Handler:       _Scheduler_WatchCommittees_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "scheduler.proto",
}
