package grpcserver

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls flashlog.v1.LogExport.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Write stores p as one entry and returns the stored length.
func (c *Client) Write(ctx context.Context, p []byte, opts ...grpc.CallOption) (uint32, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.cc.Invoke(ctx, methodWrite, wrapperspb.Bytes(p), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// Drain streams the log and hands every chunk to fn until the server ends
// the stream.
func (c *Client) Drain(ctx context.Context, chunk uint32, fn func([]byte) error, opts ...grpc.CallOption) error {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodDrain, opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(wrapperspb.UInt32(chunk)); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		m := new(wrapperspb.BytesValue)
		err := stream.RecvMsg(m)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(m.GetValue()); err != nil {
			return err
		}
	}
}

func (c *Client) Erase(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodErase, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (map[string]interface{}, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
