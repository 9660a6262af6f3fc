// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Session       SessionConfig
	AudioLimits   AudioLimitsConfig
	Kafka         KafkaConfig
	Clipboard     ClipboardConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
}

// STTConfig configures the recognition source.
type STTConfig struct {
	Provider       string // mock, google, bridge
	LanguageCode   string
	Continuous     bool
	InterimResults bool
	SampleRateHz   int
	AudioEncoding  string
	BridgeURL      string
	MockInterval   time.Duration
}

// SessionConfig configures the dictation session controller.
type SessionConfig struct {
	AutoRestart         bool
	RestartInitialDelay time.Duration
	RestartMaxDelay     time.Duration
	EventBuffer         int
}

// AudioLimitsConfig bounds audio accepted from clients.
type AudioLimitsConfig struct {
	MaxChunkBytes     int
	MaxStreamDuration time.Duration
	QueueSize         int
}

// KafkaConfig configures transcript event publication.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicInterim  string
	TopicFragment string
	Principal     string
}

// ClipboardConfig configures the copy action.
type ClipboardConfig struct {
	Provider      string // system, memory, none
	NotifyDesktop bool
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Providers accepted for STT_PROVIDER.
const (
	ProviderMock   = "mock"
	ProviderGoogle = "google"
	ProviderBridge = "bridge"
)

// Load reads configuration from environment variables, falling back to
// defaults for unset or unparsable values.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-dictation")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		STT: STTConfig{
			Provider:       strings.ToLower(envOrDefault("STT_PROVIDER", ProviderMock)),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			Continuous:     envOrDefaultBool("STT_CONTINUOUS", true),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			BridgeURL:      envOrDefault("STT_BRIDGE_URL", ""),
			MockInterval:   envOrDefaultDuration("STT_MOCK_INTERVAL", 300*time.Millisecond),
		},
		Session: SessionConfig{
			AutoRestart:         envOrDefaultBool("SESSION_AUTO_RESTART", true),
			RestartInitialDelay: envOrDefaultDuration("SESSION_RESTART_INITIAL_DELAY", 250*time.Millisecond),
			RestartMaxDelay:     envOrDefaultDuration("SESSION_RESTART_MAX_DELAY", 10*time.Second),
			EventBuffer:         envOrDefaultInt("SESSION_EVENT_BUFFER", 64),
		},
		AudioLimits: AudioLimitsConfig{
			MaxChunkBytes:     envOrDefaultInt("AUDIO_MAX_CHUNK_BYTES", 64*1024),
			MaxStreamDuration: envOrDefaultDuration("AUDIO_MAX_STREAM_DURATION", 30*time.Minute),
			QueueSize:         envOrDefaultInt("AUDIO_QUEUE_SIZE", 64),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicInterim:  envOrDefault("KAFKA_TOPIC_INTERIM", "dictation.transcript.interim"),
			TopicFragment: envOrDefault("KAFKA_TOPIC_FRAGMENT", "dictation.transcript.fragment"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Clipboard: ClipboardConfig{
			Provider:      strings.ToLower(envOrDefault("CLIPBOARD_PROVIDER", "system")),
			NotifyDesktop: envOrDefaultBool("NOTIFY_DESKTOP", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

// LoadEnvFile loads variables from a .env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration that makes the service unable to start.
func (c *Config) Validate() error {
	switch c.STT.Provider {
	case ProviderMock, ProviderGoogle:
	case ProviderBridge:
		if c.STT.BridgeURL == "" {
			return errors.New("STT_BRIDGE_URL must be set when STT_PROVIDER=bridge")
		}
	default:
		return fmt.Errorf("unsupported STT_PROVIDER %q (want mock|google|bridge)", c.STT.Provider)
	}
	switch c.Clipboard.Provider {
	case "system", "memory", "none":
	default:
		return fmt.Errorf("unsupported CLIPBOARD_PROVIDER %q (want system|memory|none)", c.Clipboard.Provider)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS must be set when KAFKA_ENABLED=true")
	}
	if c.Session.EventBuffer <= 0 {
		return errors.New("SESSION_EVENT_BUFFER must be positive")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
