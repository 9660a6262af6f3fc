package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/observability/metrics"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.InitWithWriter(logging.Config{Level: level, Format: "json"}, &buf)
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })
	return &buf
}

func TestUnaryServerInterceptor(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		err     error
		logged  bool
		wantLvl string
	}{
		{"success", "/ai.speech.dictation.v1.DictationService/Toggle", nil, true, `"level":"info"`},
		{"precondition", "/ai.speech.dictation.v1.DictationService/Copy", status.Error(codes.FailedPrecondition, "no clipboard"), true, `"level":"warn"`},
		{"internal", "/ai.speech.dictation.v1.DictationService/Read", status.Error(codes.Internal, "boom"), true, `"level":"error"`},
		{"health check", "/grpc.health.v1.Health/Check", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t, "info")
			interceptor := UnaryServerInterceptor()

			_, err := interceptor(context.Background(), nil,
				&grpc.UnaryServerInfo{FullMethod: tt.method},
				func(ctx context.Context, req any) (any, error) { return "ok", tt.err })
			if status.Code(err) != status.Code(tt.err) {
				t.Fatalf("expected code %v, got %v", status.Code(tt.err), status.Code(err))
			}

			out := buf.String()
			if !tt.logged {
				if out != "" {
					t.Errorf("expected no info log for %s, got %s", tt.method, out)
				}
				return
			}
			if !strings.Contains(out, tt.method) || !strings.Contains(out, tt.wantLvl) {
				t.Errorf("unexpected log line %s", out)
			}
		})
	}
}

func TestStreamServerInterceptor_RecordsMetrics(t *testing.T) {
	captureLogs(t, "info")
	m := metrics.NewMetrics(prometheus.NewRegistry())
	interceptor := StreamServerInterceptor(m)

	run := func(method string, err error) {
		interceptor(nil, nil, &grpc.StreamServerInfo{FullMethod: method},
			func(srv any, ss grpc.ServerStream) error { return err })
	}

	run("/ai.speech.dictation.v1.DictationService/StreamAudio", nil)
	run("/ai.speech.dictation.v1.DictationService/Watch", status.Error(codes.Canceled, "viewer left"))
	run("/ai.speech.dictation.v1.DictationService/StreamAudio", status.Error(codes.InvalidArgument, "chunk too large"))
	run("/grpc.health.v1.Health/Watch", nil)

	if got := testutil.ToFloat64(m.StreamsTotal); got != 3 {
		t.Errorf("expected 3 streams, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamsSuccess); got != 2 {
		t.Errorf("expected 2 successful streams, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamsFailed); got != 1 {
		t.Errorf("expected 1 failed stream, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamsActive); got != 0 {
		t.Errorf("expected no active streams, got %v", got)
	}
}
