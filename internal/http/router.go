package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/clipboard"
	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/service/display"
	"ai-speech-dictation-service/internal/service/session"
)

//go:embed static/*
var staticFiles embed.FS

// Session is the dictation session driven by the page and the REST API.
// *session.Controller implements it.
type Session interface {
	Toggle(ctx context.Context) (bool, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
	Copy(ctx context.Context) error
	Read(ctx context.Context) (string, error)
	Status(ctx context.Context) (models.SessionStatus, error)
}

type api struct {
	session Session
	log     zerolog.Logger
}

// NewRouter constructs the HTTP router for the dictation page and API.
// ready may be nil.
func NewRouter(s Session, hub *display.Hub, ready func() bool) http.Handler {
	a := &api{
		session: s,
		log:     logging.WithComponent("http"),
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/transcript", a.transcript)
		r.Get("/session", a.status)
		r.Post("/session/toggle", a.toggle)
		r.Post("/session/start", a.action(a.session.Start))
		r.Post("/session/stop", a.action(a.session.Stop))
		r.Post("/session/clear", a.action(a.session.Clear))
		r.Post("/session/copy", a.action(a.session.Copy))
		r.Get("/ws", WatchHandler(hub))
	})

	// Dictation page
	staticFS, _ := fs.Sub(staticFiles, "static")
	r.Handle("/*", http.FileServer(http.FS(staticFS)))

	return r
}

func (a *api) transcript(w http.ResponseWriter, r *http.Request) {
	text, err := a.session.Read(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	st, err := a.session.Status(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) toggle(w http.ResponseWriter, r *http.Request) {
	recording, err := a.session.Toggle(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recording": recording})
}

// action wraps a session call that returns only an error, answering with
// the resulting session status.
func (a *api) action(call func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := call(r.Context()); err != nil {
			a.writeError(w, r, err)
			return
		}
		a.status(w, r)
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	a.log.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Str("requestId", middleware.GetReqID(r.Context())).
		Int("status", code).
		Msg("Request failed")
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, clipboard.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrSourceStart):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
