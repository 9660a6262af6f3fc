// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_dictation"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// gRPC stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsSuccess prometheus.Counter
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Recognition metrics
	RecognitionEvents prometheus.Counter
	ResultsInterim    prometheus.Counter
	ResultsFinal      prometheus.Counter

	// Reducer metrics
	Reductions      *prometheus.CounterVec
	CommandsMatched *prometheus.CounterVec
	BufferBytes     prometheus.Gauge
	ReduceLatency   prometheus.Histogram

	// Session metrics
	Recording       prometheus.Gauge
	SourceStarts    *prometheus.CounterVec
	SourceRestarts  *prometheus.CounterVec
	SourceErrors    *prometheus.CounterVec
	ClipboardCopies *prometheus.CounterVec
	Viewers         prometheus.Gauge

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter
	AudioRejected       *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StreamsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of gRPC streams started",
		}),
		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		StreamsSuccess: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_success_total",
			Help:      "Total number of successfully completed streams",
		}),
		StreamsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of failed streams",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		RecognitionEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_events_total",
			Help:      "Total number of recognition events delivered by the source",
		}),
		ResultsInterim: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_interim_total",
			Help:      "Total number of interim recognition results received",
		}),
		ResultsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_final_total",
			Help:      "Total number of final recognition results received",
		}),

		Reductions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reductions_total",
			Help:      "Reducer steps that accepted a final transcript, by outcome (command, literal, duplicate)",
		}, []string{"kind"}),
		CommandsMatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_matched_total",
			Help:      "Spoken commands matched by label",
		}, []string{"command"}),
		BufferBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_bytes",
			Help:      "Current size of the dictation buffer in bytes",
		}),
		ReduceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reduce_latency_seconds",
			Help:      "Time from event receipt to buffer update",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		Recording: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording",
			Help:      "1 while the user intends to record, 0 otherwise",
		}),
		SourceStarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_starts_total",
			Help:      "Recognition source start attempts",
		}, []string{"provider", "result"}),
		SourceRestarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_restarts_total",
			Help:      "Automatic restarts after the source ended while recording",
		}, []string{"provider"}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Errors reported by the recognition source",
		}, []string{"provider", "error_type"}),
		ClipboardCopies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clipboard_copies_total",
			Help:      "Copy-to-clipboard attempts by result",
		}, []string{"result"}),
		Viewers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers",
			Help:      "Number of connected display viewers",
		}),

		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),
		AudioRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_rejected_total",
			Help:      "Audio chunks rejected by limit, or discarded as stale when recording starts",
		}, []string{"limit_type"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordStreamStart records a new stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if success {
		m.StreamsSuccess.Inc()
	} else {
		m.StreamsFailed.Inc()
	}
}

// RecordRecognitionEvent records an event and its interim/final result counts.
func (m *Metrics) RecordRecognitionEvent(interim, final int) {
	m.RecognitionEvents.Inc()
	m.ResultsInterim.Add(float64(interim))
	m.ResultsFinal.Add(float64(final))
}

// RecordReduction records a reducer step.
func (m *Metrics) RecordReduction(kind, command string, latencySeconds float64) {
	m.Reductions.WithLabelValues(kind).Inc()
	if command != "" {
		m.CommandsMatched.WithLabelValues(command).Inc()
	}
	m.ReduceLatency.Observe(latencySeconds)
}

// SetBufferBytes records the current buffer size.
func (m *Metrics) SetBufferBytes(n int) {
	m.BufferBytes.Set(float64(n))
}

// SetRecording records the recording intent.
func (m *Metrics) SetRecording(recording bool) {
	if recording {
		m.Recording.Set(1)
		return
	}
	m.Recording.Set(0)
}

// RecordSourceStart records a source start attempt.
func (m *Metrics) RecordSourceStart(provider string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SourceStarts.WithLabelValues(provider, result).Inc()
}

// RecordSourceRestart records an automatic restart.
func (m *Metrics) RecordSourceRestart(provider string) {
	m.SourceRestarts.WithLabelValues(provider).Inc()
}

// RecordSourceError records a source error.
func (m *Metrics) RecordSourceError(provider, errorType string) {
	m.SourceErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordCopy records a clipboard copy attempt.
func (m *Metrics) RecordCopy(err error) {
	if err != nil {
		m.ClipboardCopies.WithLabelValues("error").Inc()
		return
	}
	m.ClipboardCopies.WithLabelValues("success").Inc()
}

// SetViewers records the number of connected viewers.
func (m *Metrics) SetViewers(n int) {
	m.Viewers.Set(float64(n))
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordAudioRejected records an audio frame rejected by a limit.
func (m *Metrics) RecordAudioRejected(limitType string) {
	m.AudioRejected.WithLabelValues(limitType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
