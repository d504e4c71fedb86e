// Package grpcserver exposes the flash log over gRPC.
package grpcserver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"flashlog/logstore"
	"flashlog/service"
)

const (
	DefaultChunkSize = 1024
	MaxChunkSize     = 64 << 10
)

// Server adapts LogService to gRPC.
type Server struct {
	svc    *service.LogService
	logger zerolog.Logger
}

var _ LogExportServer = (*Server)(nil)

func NewServer(svc *service.LogService, logger zerolog.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// Register adds srv to gs.
func Register(gs *grpc.Server, srv *Server) {
	gs.RegisterService(&ServiceDesc, srv)
}

// -------------------- Commands --------------------

func (s *Server) Write(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt32Value, error) {
	n, err := s.svc.WriteRaw(req.GetValue())
	if err != nil {
		s.logger.Debug().Err(err).Int("len", len(req.GetValue())).Msg("grpc write failed")
		return nil, toStatus(err)
	}
	return wrapperspb.UInt32(uint32(n)), nil
}

func (s *Server) Erase(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.svc.Erase(); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info().Msg("grpc erase")
	return &emptypb.Empty{}, nil
}

// -------------------- Queries --------------------

// Drain streams the whole log, oldest first, in chunks of the requested
// size. Zero means DefaultChunkSize.
func (s *Server) Drain(req *wrapperspb.UInt32Value, stream DrainStream) error {
	chunk := int(req.GetValue())
	switch {
	case chunk == 0:
		chunk = DefaultChunkSize
	case chunk > MaxChunkSize:
		return status.Errorf(codes.InvalidArgument, "chunk size %d above %d", chunk, MaxChunkSize)
	}

	sent := 0
	_, err := s.svc.Drain(stream.Context(), logstore.Cursor{}, chunk, func(p []byte, _ logstore.Cursor) error {
		sent += len(p)
		return stream.Send(wrapperspb.Bytes(p))
	})
	s.logger.Debug().Int("chunk", chunk).Int("bytes", sent).Err(err).Msg("grpc drain")
	if err != nil {
		return toStatus(err)
	}
	return nil
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.svc.Status()
	out, err := structpb.NewStruct(map[string]interface{}{
		"ready":          st.Ready,
		"format":         st.Format.String(),
		"max_entry_size": st.MaxEntrySize,
		"sectors":        st.Stats.Sectors,
		"used_sectors":   st.Stats.UsedSectors,
		"oldest_id":      uint32(st.Stats.OldestID),
		"active_id":      uint32(st.Stats.ActiveID),
		"active_free":    st.Stats.ActiveFree,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -------------------- Errors --------------------

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, logstore.ErrNotReady):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, logstore.ErrOutOfMemory):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, logstore.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
