package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service is described with well-known types only, equivalent to
//
//	service LogExport {
//	  rpc Write(google.protobuf.BytesValue) returns (google.protobuf.UInt32Value);
//	  rpc Drain(google.protobuf.UInt32Value) returns (stream google.protobuf.BytesValue);
//	  rpc Erase(google.protobuf.Empty) returns (google.protobuf.Empty);
//	  rpc Status(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
const (
	ServiceName = "flashlog.v1.LogExport"

	methodWrite  = "/" + ServiceName + "/Write"
	methodDrain  = "/" + ServiceName + "/Drain"
	methodErase  = "/" + ServiceName + "/Erase"
	methodStatus = "/" + ServiceName + "/Status"
)

// LogExportServer is the server API of flashlog.v1.LogExport.
type LogExportServer interface {
	Write(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt32Value, error)
	Drain(*wrapperspb.UInt32Value, DrainStream) error
	Erase(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// DrainStream is the server side of a Drain call.
type DrainStream interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type drainStream struct {
	grpc.ServerStream
}

func (x *drainStream) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

// ServiceDesc registers a LogExportServer with a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LogExportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Write", Handler: writeHandler},
		{MethodName: "Erase", Handler: eraseHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Drain", Handler: drainHandler, ServerStreams: true},
	},
	Metadata: "flashlog/v1/log_export.proto",
}

func writeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogExportServer).Write(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodWrite}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LogExportServer).Write(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func eraseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogExportServer).Erase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodErase}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LogExportServer).Erase(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogExportServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStatus}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LogExportServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func drainHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.UInt32Value)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LogExportServer).Drain(m, &drainStream{stream})
}
