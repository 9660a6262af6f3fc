package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/schema"
)

// retryDelay is the pause after a failed read before trying again.
const retryDelay = time.Second

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Transcripts rebuilds per-session dictation buffers from fragment events.
type Transcripts struct {
	mu    sync.RWMutex
	texts map[string]string
}

func NewTranscripts() *Transcripts {
	return &Transcripts{texts: make(map[string]string)}
}

// Apply appends the fragment a reducer step contributed and returns the
// session's transcript so far. Duplicates contribute nothing.
func (t *Transcripts) Apply(f models.TranscriptFragment) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.texts[f.SessionID] += f.Fragment
	return t.texts[f.SessionID]
}

// Get returns the transcript rebuilt for sessionID.
func (t *Transcripts) Get(sessionID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.texts[sessionID]
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string // empty reads partition 0 without a consumer group
}

// Consumer reads transcript fragments and reports each rebuilt transcript.
type Consumer struct {
	reader      messageReader
	validator   *schema.Validator
	transcripts *Transcripts
	onUpdate    func(sessionID, text string)
	log         zerolog.Logger
}

// NewConsumer creates a fragment consumer. onUpdate is called from Run for
// every accepted fragment.
func NewConsumer(cfg ConsumerConfig, onUpdate func(sessionID, text string)) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if cfg.GroupID == "" {
		rc.Partition = 0
	} else {
		rc.StartOffset = kafka.FirstOffset
	}
	return newConsumer(kafka.NewReader(rc), onUpdate)
}

func newConsumer(r messageReader, onUpdate func(sessionID, text string)) *Consumer {
	if onUpdate == nil {
		onUpdate = func(string, string) {}
	}
	return &Consumer{
		reader:      r,
		validator:   schema.New(),
		transcripts: NewTranscripts(),
		onUpdate:    onUpdate,
		log:         logging.WithComponent("consumer"),
	}
}

// Transcripts returns the rebuilt transcripts.
func (c *Consumer) Transcripts() *Transcripts {
	return c.transcripts
}

// Run consumes until ctx is done. Read errors are logged and retried.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The reader reports io.EOF once closed.
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Warn().Err(err).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}
		c.handle(msg)
	}
}

func (c *Consumer) handle(msg kafka.Message) {
	var frag models.TranscriptFragment
	if err := json.Unmarshal(msg.Value, &frag); err != nil {
		c.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping undecodable fragment")
		return
	}
	if err := c.validator.Validate(frag); err != nil {
		c.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping invalid fragment")
		return
	}

	text := c.transcripts.Apply(frag)
	c.log.Debug().
		Str("sessionId", frag.SessionID).
		Str("utteranceId", frag.UtteranceID).
		Str("kind", frag.Kind).
		Msg("Fragment applied")
	c.onUpdate(frag.SessionID, text)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
