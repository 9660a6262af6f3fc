// Package app wires the dictation session to its transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "ai-speech-dictation-service/internal/api/grpc"
	"ai-speech-dictation-service/internal/clipboard"
	"ai-speech-dictation-service/internal/config"
	"ai-speech-dictation-service/internal/events"
	httpapi "ai-speech-dictation-service/internal/http"
	"ai-speech-dictation-service/internal/notify"
	"ai-speech-dictation-service/internal/observability"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/observability/metrics"
	"ai-speech-dictation-service/internal/service/audio"
	"ai-speech-dictation-service/internal/service/display"
	"ai-speech-dictation-service/internal/service/session"
	"ai-speech-dictation-service/internal/service/stt"
	"ai-speech-dictation-service/internal/service/stt/bridge"
	"ai-speech-dictation-service/internal/service/stt/google"
	"ai-speech-dictation-service/internal/service/stt/mock"
)

const (
	serviceName = "ai-speech-dictation-service"

	// The session loop waits for the bridge dial, so keep it short.
	bridgeDialAttempts = 3
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Hub       *display.Hub
	Audio     *audio.Pipe
	Publisher *events.Publisher
	Session   *session.Controller

	source  stt.Source
	grpc    *grpc.Server
	health  *health.Server
	http    *http.Server
	obs     *observability.Server
	ready   atomic.Bool
	grpcLis net.Listener
	httpLis net.Listener
}

// New constructs the application from cfg. Configuration the service
// cannot run with (unknown provider, unreachable provider client) is
// reported here, once.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
		Hub:    display.NewHub(display.DefaultSubscriberBuffer),
		Audio: audio.NewPipe(audio.Limits{
			MaxChunkBytes:     cfg.AudioLimits.MaxChunkBytes,
			MaxStreamDuration: cfg.AudioLimits.MaxStreamDuration,
			QueueSize:         cfg.AudioLimits.QueueSize,
		}),
		Publisher: events.New(&events.Config{
			Enabled:       cfg.Kafka.Enabled,
			Brokers:       cfg.Kafka.Brokers,
			TopicInterim:  cfg.Kafka.TopicInterim,
			TopicFragment: cfg.Kafka.TopicFragment,
			Principal:     cfg.Kafka.Principal,
		}),
	}

	src, err := newSource(ctx, cfg, a.Audio)
	if err != nil {
		a.Publisher.Close()
		return nil, err
	}
	a.source = src

	clip, err := clipboard.New(cfg.Clipboard.Provider)
	if err != nil {
		a.Publisher.Close()
		return nil, err
	}

	notifier := notify.Multi{notify.Display{Hub: a.Hub}, notify.NewLog()}
	if cfg.Clipboard.NotifyDesktop {
		notifier = append(notifier, notify.NewDesktop("Dictation"))
	}

	a.Session = session.New(session.Deps{
		Source:    src,
		Audio:     a.Audio,
		Surface:   display.NewBuffer(a.Hub.Observer()),
		Preview:   a.Hub.Observer(),
		Clipboard: clip,
		Notifier:  notifier,
		Publisher: a.Publisher,
		Metrics:   metrics.DefaultMetrics,
	}, session.Options{
		AutoRestart:         cfg.Session.AutoRestart,
		RestartInitialDelay: cfg.Session.RestartInitialDelay,
		RestartMaxDelay:     cfg.Session.RestartMaxDelay,
		EventBuffer:         cfg.Session.EventBuffer,
	})

	a.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)
	a.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpc, a.health)
	// The mock source never reads audio, so uploads are refused.
	var sink grpcapi.AudioSink
	if cfg.STT.Provider != config.ProviderMock {
		sink = a.Audio
	}
	grpcapi.Register(a.grpc, grpcapi.NewServer(a.Session, a.Hub, sink))
	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(a.grpc)

	a.http = &http.Server{
		Handler:           httpapi.NewRouter(a.Session, a.Hub, a.ready.Load),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.obs = observability.NewServer(":"+cfg.Observability.MetricsPort, a.ready.Load)

	a.Logger.Info().
		Str("sessionId", a.Session.ID()).
		Str("provider", src.Name()).
		Bool("kafka", a.Publisher.Enabled()).
		Str("clipboard", cfg.Clipboard.Provider).
		Msg("AI Speech Dictation service application created")
	return a, nil
}

// newSource builds the configured recognition source.
func newSource(ctx context.Context, cfg *config.Config, pipe *audio.Pipe) (stt.Source, error) {
	sttCfg := stt.Config{
		LanguageCode:   cfg.STT.LanguageCode,
		Continuous:     cfg.STT.Continuous,
		InterimResults: cfg.STT.InterimResults,
		SampleRateHz:   int32(cfg.STT.SampleRateHz),
		AudioEncoding:  cfg.STT.AudioEncoding,
	}

	switch cfg.STT.Provider {
	case config.ProviderMock:
		return mock.New(mock.DefaultScript, cfg.STT.MockInterval, sttCfg), nil
	case config.ProviderGoogle:
		src, err := google.New(ctx, sttCfg, pipe)
		if err != nil {
			return nil, fmt.Errorf("google recognition source: %w", err)
		}
		return src, nil
	case config.ProviderBridge:
		src, err := bridge.New(bridge.Options{
			URL:          cfg.STT.BridgeURL,
			DialAttempts: bridgeDialAttempts,
			Audio:        pipe,
		}, sttCfg)
		if err != nil {
			return nil, fmt.Errorf("bridge recognition source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported STT provider %q", cfg.STT.Provider)
	}
}

// Start opens the listeners and serves gRPC, HTTP and observability
// traffic in the background.
func (a *Application) Start() error {
	grpcLis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpLis, err := net.Listen("tcp", ":"+a.Cfg.Service.HTTPPort)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("listen http: %w", err)
	}
	a.grpcLis, a.httpLis = grpcLis, httpLis

	a.obs.Start()
	go func() {
		if err := a.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.Logger.Error().Err(err).Msg("gRPC server error")
		}
	}()
	go func() {
		if err := a.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	a.ready.Store(true)

	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("grpcAddr", grpcLis.Addr().String()).
		Str("httpAddr", httpLis.Addr().String()).
		Msg("AI Speech Dictation service started")
	return nil
}

// GRPCAddr returns the bound gRPC address once started.
func (a *Application) GRPCAddr() string {
	if a.grpcLis == nil {
		return ""
	}
	return a.grpcLis.Addr().String()
}

// HTTPAddr returns the bound HTTP address once started.
func (a *Application) HTTPAddr() string {
	if a.httpLis == nil {
		return ""
	}
	return a.httpLis.Addr().String()
}

// Shutdown stops taking traffic, ends the session and flushes pending
// transcript events.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("AI Speech Dictation service shutting down")
	a.ready.Store(false)
	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	a.health.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Watch streams only end when the hub drops them.
	a.Hub.Close()
	a.Audio.Close()

	stopped := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.grpc.Stop()
	}

	if err := a.http.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("HTTP server shutdown")
	}
	if err := a.obs.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Observability server shutdown")
	}
	if err := a.Session.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Session close")
	}
	if c, ok := a.source.(interface{ Close() error }); ok {
		c.Close()
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Publisher close")
	}
}
