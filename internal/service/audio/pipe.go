// Package audio carries raw audio chunks from the ingress API to recognition
// sources that consume audio. Chunks are opaque; no decoding happens here.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ai-speech-dictation-service/internal/observability/metrics"
)

// Limits are guardrails applied to each ingress stream.
type Limits struct {
	MaxChunkBytes     int           // Max bytes in a single chunk
	MaxStreamDuration time.Duration // Max wall time of one ingress stream
	QueueSize         int           // Chunks buffered before Write blocks
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxChunkBytes:     64 * 1024,        // 2s of 16kHz 16-bit mono
		MaxStreamDuration: 30 * time.Minute, // one long dictation
		QueueSize:         64,
	}
}

var (
	ErrChunkTooLarge = errors.New("audio chunk exceeds limit")
	ErrStreamTooLong = errors.New("audio stream exceeds max duration")
	ErrClosed        = errors.New("audio pipe closed")
)

// Pipe is a bounded queue of audio chunks with a single logical producer
// stream at a time. Write blocks while the queue is full.
type Pipe struct {
	limits  Limits
	chunks  chan []byte
	done    chan struct{}
	once    sync.Once
	metrics *metrics.Metrics

	mu          sync.Mutex
	streamStart time.Time
}

func NewPipe(limits Limits) *Pipe {
	if limits.QueueSize <= 0 {
		limits.QueueSize = DefaultLimits().QueueSize
	}
	return &Pipe{
		limits:  limits,
		chunks:  make(chan []byte, limits.QueueSize),
		done:    make(chan struct{}),
		metrics: metrics.DefaultMetrics,
	}
}

// WithMetrics sets the metrics sink. Used by tests.
func (p *Pipe) WithMetrics(m *metrics.Metrics) *Pipe {
	p.metrics = m
	return p
}

func (p *Pipe) Limits() Limits {
	return p.limits
}

// BeginStream restarts the duration clock for a new ingress stream.
func (p *Pipe) BeginStream() {
	p.mu.Lock()
	p.streamStart = time.Now()
	p.mu.Unlock()
}

// Write queues chunk. It fails fast on limit violations and otherwise blocks
// until the chunk is queued, ctx is done, or the pipe is closed.
func (p *Pipe) Write(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if p.limits.MaxChunkBytes > 0 && len(chunk) > p.limits.MaxChunkBytes {
		p.metrics.RecordAudioRejected("chunk_bytes")
		return fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, len(chunk), p.limits.MaxChunkBytes)
	}

	p.mu.Lock()
	if p.streamStart.IsZero() {
		p.streamStart = time.Now()
	}
	elapsed := time.Since(p.streamStart)
	p.mu.Unlock()

	if p.limits.MaxStreamDuration > 0 && elapsed > p.limits.MaxStreamDuration {
		p.metrics.RecordAudioRejected("stream_duration")
		return fmt.Errorf("%w: %v > %v", ErrStreamTooLong, elapsed.Round(time.Second), p.limits.MaxStreamDuration)
	}

	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.chunks <- chunk:
		p.metrics.RecordAudioReceived(len(chunk))
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read returns the next chunk. It returns io.EOF once the pipe is closed.
func (p *Pipe) Read(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-p.chunks:
		return chunk, nil
	case <-p.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drain discards every queued chunk and returns how many were dropped.
func (p *Pipe) Drain() int {
	n := 0
	for {
		select {
		case <-p.chunks:
			n++
		default:
			if n > 0 {
				p.metrics.RecordAudioRejected("stale")
			}
			return n
		}
	}
}

// Buffered returns the number of queued chunks.
func (p *Pipe) Buffered() int {
	return len(p.chunks)
}

// Close unblocks readers and writers. Idempotent.
func (p *Pipe) Close() {
	p.once.Do(func() { close(p.done) })
}
