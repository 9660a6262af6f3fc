package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "ai-speech-dictation-service/internal/api/grpc"
	"ai-speech-dictation-service/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Principal: "svc-test", GRPCPort: "0", HTTPPort: "0"},
		STT: config.STTConfig{
			Provider:       config.ProviderMock,
			LanguageCode:   "en-US",
			Continuous:     true,
			InterimResults: true,
			SampleRateHz:   16000,
			AudioEncoding:  "LINEAR16",
			MockInterval:   2 * time.Millisecond,
		},
		Session: config.SessionConfig{
			AutoRestart:         true,
			RestartInitialDelay: time.Millisecond,
			RestartMaxDelay:     10 * time.Millisecond,
			EventBuffer:         16,
		},
		AudioLimits: config.AudioLimitsConfig{MaxChunkBytes: 1024, MaxStreamDuration: time.Minute, QueueSize: 4},
		Clipboard:   config.ClipboardConfig{Provider: "memory"},
		Observability: config.ObservabilityConfig{
			LogLevel:    "error",
			LogFormat:   "json",
			MetricsPort: "0",
		},
	}
}

// loopback turns a wildcard listener address into one a client can dial.
func loopback(t *testing.T, addr string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	return net.JoinHostPort("127.0.0.1", port)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown provider", func(c *config.Config) { c.STT.Provider = "whisper" }},
		{"bridge without url", func(c *config.Config) { c.STT.Provider = config.ProviderBridge }},
		{"unknown clipboard", func(c *config.Config) { c.Clipboard.Provider = "x11" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestApplication_DictatesOverGRPC(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.Shutdown(ctx)
	}()

	conn, err := grpc.NewClient(loopback(t, a.GRPCAddr()), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hc, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: grpcapi.ServiceName})
	if err != nil || hc.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health: %v, %v", hc.GetStatus(), err)
	}

	client := grpcapi.NewClient(conn)
	recording, err := client.Toggle(ctx)
	if err != nil || !recording {
		t.Fatalf("Toggle: %v, %v", recording, err)
	}

	// The mock recognizer stops after the repeated "hello world"; the
	// session restarts it to hear the rest.
	want := "hello world , goodbye "
	var text string
	for ctx.Err() == nil {
		text, err = client.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if text == want {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}

	st, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st["provider"] != "mock" || st["restarts"].(float64) < 1 {
		t.Errorf("expected a restarted mock session, got %v", st)
	}

	if err := client.Copy(ctx); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := client.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if text, _ := client.Read(ctx); text != "" {
		t.Errorf("expected empty buffer after clear, got %q", text)
	}
}

func TestApplication_ServesHTTP(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Shutdown(context.Background())

	base := "http://" + loopback(t, a.HTTPAddr())
	resp, err := http.Get(base + "/v1/readiness")
	if err != nil {
		t.Fatalf("readiness: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected ready, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/v1/session")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer resp.Body.Close()
	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st["phase"] != "IDLE" || st["sessionId"] != a.Session.ID() {
		t.Errorf("unexpected session status %v", st)
	}
}
