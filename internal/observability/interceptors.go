package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/observability/metrics"
)

// Health and reflection traffic is polled constantly and only logged at debug.
var quietServices = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isQuiet(method string) bool {
	for _, prefix := range quietServices {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

func callEvent(log *zerolog.Logger, method string, err error) *zerolog.Event {
	switch {
	case isQuiet(method):
		return log.Debug()
	case err == nil:
		return log.Info()
	}
	switch status.Code(err) {
	case codes.Canceled, codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
		return log.Warn().Err(err)
	default:
		return log.Error().Err(err)
	}
}

// UnaryServerInterceptor logs every unary dictation call with its status code.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	log := logging.WithComponent("grpc")
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		callEvent(&log, info.FullMethod, err).
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor records stream metrics for Watch and StreamAudio
// and logs the outcome when the stream completes.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	log := logging.WithComponent("grpc")
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		quiet := isQuiet(info.FullMethod)
		start := time.Now()
		if !quiet {
			m.RecordStreamStart()
		}

		err := handler(srv, ss)

		duration := time.Since(start)
		// A viewer hanging up ends a Watch stream with Canceled.
		success := err == nil || status.Code(err) == codes.Canceled
		if !quiet {
			m.RecordStreamEnd(success, duration.Seconds())
		}

		callEvent(&log, info.FullMethod, err).
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", duration).
			Bool("success", success).
			Msg("gRPC stream completed")

		return err
	}
}
