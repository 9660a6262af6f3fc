package audio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ai-speech-dictation-service/internal/observability/metrics"
)

func newTestPipe(limits Limits) (*Pipe, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewPipe(limits).WithMetrics(m), m
}

func TestPipe_WriteRead(t *testing.T) {
	p, m := newTestPipe(DefaultLimits())
	ctx := context.Background()

	if err := p.Write(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if p.Buffered() != 1 {
		t.Errorf("expected 1 buffered chunk, got %d", p.Buffered())
	}

	chunk, err := p.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if len(chunk) != 3 {
		t.Errorf("expected 3 bytes, got %d", len(chunk))
	}
	if got := testutil.ToFloat64(m.AudioBytesReceived); got != 3 {
		t.Errorf("expected 3 bytes recorded, got %v", got)
	}
}

func TestPipe_Drain(t *testing.T) {
	p, m := newTestPipe(DefaultLimits())
	ctx := context.Background()

	p.Write(ctx, []byte("said-while-idle-1"))
	p.Write(ctx, []byte("said-while-idle-2"))
	if n := p.Drain(); n != 2 {
		t.Fatalf("expected 2 chunks drained, got %d", n)
	}
	if p.Buffered() != 0 {
		t.Errorf("expected empty queue, got %d", p.Buffered())
	}
	if got := testutil.ToFloat64(m.AudioRejected.WithLabelValues("stale")); got != 1 {
		t.Errorf("expected one stale rejection recorded, got %v", got)
	}

	p.Write(ctx, []byte("said-while-recording"))
	chunk, err := p.Read(ctx)
	if err != nil || string(chunk) != "said-while-recording" {
		t.Errorf("expected fresh chunk after drain, got %q, %v", chunk, err)
	}
	if n := p.Drain(); n != 0 {
		t.Errorf("expected nothing to drain, got %d", n)
	}
}

func TestPipe_EmptyChunkIgnored(t *testing.T) {
	p, _ := newTestPipe(DefaultLimits())

	if err := p.Write(context.Background(), nil); err != nil {
		t.Errorf("expected nil error for empty chunk, got %v", err)
	}
	if p.Buffered() != 0 {
		t.Errorf("expected nothing buffered, got %d", p.Buffered())
	}
}

func TestPipe_MaxChunkBytes(t *testing.T) {
	p, m := newTestPipe(Limits{MaxChunkBytes: 4, QueueSize: 4})

	err := p.Write(context.Background(), make([]byte, 5))
	if !errors.Is(err, ErrChunkTooLarge) {
		t.Errorf("expected ErrChunkTooLarge, got %v", err)
	}
	if got := testutil.ToFloat64(m.AudioRejected.WithLabelValues("chunk_bytes")); got != 1 {
		t.Errorf("expected 1 rejection recorded, got %v", got)
	}

	if err := p.Write(context.Background(), make([]byte, 4)); err != nil {
		t.Errorf("expected chunk at limit to be accepted, got %v", err)
	}
}

func TestPipe_MaxStreamDuration(t *testing.T) {
	p, _ := newTestPipe(Limits{MaxStreamDuration: 20 * time.Millisecond, QueueSize: 4})
	ctx := context.Background()

	p.BeginStream()
	if err := p.Write(ctx, []byte{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if err := p.Write(ctx, []byte{1}); !errors.Is(err, ErrStreamTooLong) {
		t.Errorf("expected ErrStreamTooLong, got %v", err)
	}

	// A new stream resets the clock
	p.BeginStream()
	if err := p.Write(ctx, []byte{1}); err != nil {
		t.Errorf("expected write after BeginStream to succeed, got %v", err)
	}
}

func TestPipe_WriteBlocksUntilContextDone(t *testing.T) {
	p, _ := newTestPipe(Limits{QueueSize: 1})

	if err := p.Write(context.Background(), []byte{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Write(ctx, []byte{2}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded on full pipe, got %v", err)
	}
}

func TestPipe_Close(t *testing.T) {
	p, _ := newTestPipe(DefaultLimits())

	readErr := make(chan error, 1)
	go func() {
		_, err := p.Read(context.Background())
		readErr <- err
	}()

	p.Close()
	p.Close()

	select {
	case err := <-readErr:
		if err != io.EOF {
			t.Errorf("expected io.EOF after close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader not unblocked by Close")
	}

	if err := p.Write(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()

	if l.MaxChunkBytes != 64*1024 {
		t.Errorf("expected MaxChunkBytes 64KiB, got %d", l.MaxChunkBytes)
	}
	if l.MaxStreamDuration != 30*time.Minute {
		t.Errorf("expected MaxStreamDuration 30m, got %v", l.MaxStreamDuration)
	}
	if l.QueueSize != 64 {
		t.Errorf("expected QueueSize 64, got %d", l.QueueSize)
	}
}
