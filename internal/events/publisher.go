// Package events publishes transcript activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/observability/metrics"
	"ai-speech-dictation-service/internal/schema"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes interim previews and transcript fragments to separate
// Kafka topics. Writes are asynchronous; delivery results are reported via
// metrics and logs so the dictation session never waits on the broker.
type Publisher struct {
	writerInterim  messageWriter
	writerFragment messageWriter
	principal      string
	topicInterim   string
	topicFragment  string
	enabled        bool
	validator      *schema.Validator
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicInterim  string
	TopicFragment string
	Principal     string
	Enabled       bool
}

// New creates a new Kafka event publisher. A nil config, a disabled config
// or an empty broker list yields a log-only publisher.
func New(cfg *Config) *Publisher {
	p := &Publisher{
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("publisher"),
	}

	if cfg == nil {
		p.log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return p
	}

	p.principal = cfg.Principal
	p.topicInterim = cfg.TopicInterim
	p.topicFragment = cfg.TopicFragment

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerInterim = p.newWriter(cfg.Brokers, cfg.TopicInterim, "interim", transport)
	p.writerFragment = p.newWriter(cfg.Brokers, cfg.TopicFragment, "fragment", transport)
	p.enabled = true

	p.log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicInterim", cfg.TopicInterim).
		Str("topicFragment", cfg.TopicFragment).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func (p *Publisher) newWriter(brokers []string, topic, eventType string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same session, same partition
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			p.complete(topic, eventType, messages, err)
		},
		Transport: transport,
	}
}

// WithMetrics sets the metrics sink. Used by tests.
func (p *Publisher) WithMetrics(m *metrics.Metrics) *Publisher {
	p.metrics = m
	return p
}

// Enabled reports whether events go to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishInterim publishes an interim preview to the interim topic.
func (p *Publisher) PublishInterim(ctx context.Context, ev models.TranscriptInterim) error {
	if err := p.validator.Validate(ev); err != nil {
		p.log.Error().Err(err).Str("sessionId", ev.SessionID).Msg("Dropping invalid interim event")
		return err
	}
	return p.publish(ctx, p.writerInterim, p.topicInterim, "interim", ev.EventType, ev.SessionID, ev)
}

// PublishFragment publishes a reducer step to the fragment topic.
func (p *Publisher) PublishFragment(ctx context.Context, ev models.TranscriptFragment) error {
	if err := p.validator.Validate(ev); err != nil {
		p.log.Error().Err(err).Str("sessionId", ev.SessionID).Msg("Dropping invalid fragment event")
		return err
	}
	return p.publish(ctx, p.writerFragment, p.topicFragment, "fragment", ev.EventType, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, label, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	p.log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, label, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  start,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	// Async writer: errors here are local (closed writer, cancelled ctx);
	// broker errors arrive in complete.
	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, label, err, time.Since(start).Seconds())
		return err
	}
	return nil
}

// complete is the async delivery callback.
func (p *Publisher) complete(topic, eventType string, messages []kafka.Message, err error) {
	for _, m := range messages {
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(m.Time).Seconds())
	}
	if err != nil {
		p.log.Error().
			Err(err).
			Str("topic", topic).
			Int("messages", len(messages)).
			Msg("Kafka delivery failed")
	}
}

// Close flushes and closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerInterim != nil {
		if e := p.writerInterim.Close(); e != nil {
			p.log.Error().Err(e).Msg("Error closing interim writer")
			err = e
		}
	}
	if p.writerFragment != nil {
		if e := p.writerFragment.Close(); e != nil {
			p.log.Error().Err(e).Msg("Error closing fragment writer")
			err = e
		}
	}
	return err
}
