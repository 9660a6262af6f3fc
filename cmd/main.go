package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-dictation-service/internal/app"
	"ai-speech-dictation-service/internal/config"
	"ai-speech-dictation-service/internal/observability/logging"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load env file")
	}
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Shutdown(ctx)
}
