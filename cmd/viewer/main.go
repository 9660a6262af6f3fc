// Command viewer rebuilds dictation transcripts from the Kafka fragment
// topic and shows them in a browser over websocket.
package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-speech-dictation-service/internal/events"
	httpapi "ai-speech-dictation-service/internal/http"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/service/display"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "dictation.transcript.fragment", "Fragment topic")
	group := flag.String("group", "", "Consumer group (empty reads partition 0)")
	session := flag.String("session", "", "Only show this session id")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})

	hub := display.NewHub(display.DefaultSubscriberBuffer)
	var revision uint64
	consumer := events.NewConsumer(events.ConsumerConfig{
		Brokers: strings.Split(*brokers, ","),
		Topic:   *topic,
		GroupID: *group,
	}, func(sessionID, text string) {
		if *session != "" && sessionID != *session {
			return
		}
		revision++
		hub.Publish(display.Update{Type: display.UpdateScroll, Text: text, Revision: revision})
		hub.Publish(display.Update{Type: display.UpdateStatus, Text: sessionID})
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Consumer stopped")
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", httpapi.WatchHandler(hub))
	staticFS, _ := fs.Sub(staticFiles, "static")
	r.Handle("/*", http.FileServer(http.FS(staticFS)))

	srv := &http.Server{Addr: ":" + *port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().
			Str("addr", "http://localhost:"+*port).
			Str("brokers", *brokers).
			Str("topic", *topic).
			Msg("Transcript viewer starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server error")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	hub.Close()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
	consumer.Close()
}
