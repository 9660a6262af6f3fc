// Package grpcapi exposes the dictation session over gRPC.
package grpcapi

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ai-speech-dictation-service/internal/clipboard"
	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/service/audio"
	"ai-speech-dictation-service/internal/service/display"
	"ai-speech-dictation-service/internal/service/session"
)

// Session is the subset of *session.Controller the API needs.
type Session interface {
	Toggle(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
	Copy(ctx context.Context) error
	Read(ctx context.Context) (string, error)
	Status(ctx context.Context) (models.SessionStatus, error)
}

// AudioSink accepts uploaded audio. *audio.Pipe implements it.
type AudioSink interface {
	BeginStream()
	Write(ctx context.Context, chunk []byte) error
}

type Server struct {
	session Session
	hub     *display.Hub
	audio   AudioSink
	log     zerolog.Logger
}

// NewServer creates the gRPC service. audio may be nil when the
// recognition provider captures its own audio.
func NewServer(s Session, hub *display.Hub, sink AudioSink) *Server {
	return &Server{
		session: s,
		hub:     hub,
		audio:   sink,
		log:     logging.WithComponent("grpc-api"),
	}
}

// Register registers the dictation service on g.
func Register(g *grpc.Server, s *Server) {
	RegisterDictationServer(g, s)
}

func (s *Server) Toggle(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	recording, err := s.session.Toggle(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(recording), nil
}

func (s *Server) Clear(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.session.Clear(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Copy(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.session.Copy(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Read(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	text, err := s.session.Read(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(text), nil
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.session.Status(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"sessionId":   st.SessionID,
		"phase":       st.Phase,
		"recording":   st.Recording,
		"provider":    st.Provider,
		"restarts":    st.Restarts,
		"bufferBytes": st.BufferBytes,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

// Watch streams display updates. The first update is the current buffer.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	sub := s.hub.Subscribe()
	defer sub.Cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-sub.C:
			if !ok {
				return status.Error(codes.Unavailable, "display stream closed or viewer too slow")
			}
			msg, err := UpdateToStruct(u)
			if err != nil {
				return status.Errorf(codes.Internal, "encode update: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// StreamAudio feeds uploaded audio to the recognition source. Uploads are
// refused while the session is not recording.
func (s *Server) StreamAudio(stream grpc.ClientStreamingServer[wrapperspb.BytesValue, wrapperspb.UInt64Value]) error {
	if s.audio == nil {
		return status.Error(codes.Unimplemented, "recognition provider does not accept audio")
	}

	ctx := stream.Context()
	st, err := s.session.Status(ctx)
	if err != nil {
		return toStatus(err)
	}
	if !st.Recording {
		return toStatus(session.ErrNotRecording)
	}
	s.audio.BeginStream()

	var total uint64
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			s.log.Debug().Uint64("bytes", total).Msg("Audio stream completed")
			return stream.SendAndClose(wrapperspb.UInt64(total))
		}
		if err != nil {
			return err
		}

		if err := s.audio.Write(ctx, chunk.GetValue()); err != nil {
			s.log.Warn().Err(err).Uint64("bytes", total).Msg("Audio rejected")
			return toStatus(err)
		}
		total += uint64(len(chunk.GetValue()))
	}
}

// UpdateToStruct encodes a display update for the Watch stream.
func UpdateToStruct(u display.Update) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":     u.Type,
		"text":     u.Text,
		"revision": u.Revision,
	})
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, session.ErrClosed), errors.Is(err, audio.ErrClosed), errors.Is(err, session.ErrSourceStart):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, clipboard.ErrUnavailable), errors.Is(err, session.ErrNotRecording):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, audio.ErrChunkTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, audio.ErrStreamTooLong):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
