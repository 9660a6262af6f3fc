// Package bridge connects to an external recognizer over a websocket. The
// recognizer (for example a browser page driving its built-in speech
// recognition) streams RecognitionEvent JSON messages; optional audio is
// forwarded as binary frames.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/schema"
	"ai-speech-dictation-service/internal/service/stt"
)

const (
	defaultDialAttempts   = 45
	defaultDialRetryDelay = 1 * time.Second
	writeTimeout          = 5 * time.Second
)

// AudioReader supplies raw audio chunks. audio.Pipe implements it.
type AudioReader interface {
	Read(ctx context.Context) ([]byte, error)
}

// Options configures the bridge connection.
type Options struct {
	URL            string
	DialAttempts   uint
	DialRetryDelay time.Duration
	Dialer         *websocket.Dialer
	Audio          AudioReader // nil when the recognizer captures its own audio
}

// startMessage is sent once after connecting.
type startMessage struct {
	Event          string `json:"event"`
	LanguageCode   string `json:"languageCode"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
}

// Source implements stt.Source over a websocket bridge.
type Source struct {
	opts      Options
	cfg       stt.Config
	validator *schema.Validator
	log       zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	running bool
	writeMu sync.Mutex
}

func New(opts Options, cfg stt.Config) (*Source, error) {
	if opts.URL == "" {
		return nil, errors.New("bridge URL is empty")
	}
	if opts.DialAttempts == 0 {
		opts.DialAttempts = defaultDialAttempts
	}
	if opts.DialRetryDelay <= 0 {
		opts.DialRetryDelay = defaultDialRetryDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Source{
		opts:      opts,
		cfg:       cfg,
		validator: schema.New(),
		log:       logging.WithComponent("stt-bridge"),
	}, nil
}

func (s *Source) Name() string {
	return "bridge"
}

// Start dials the bridge, retrying up to DialAttempts, and sends the
// recognition config.
func (s *Source) Start(ctx context.Context, h stt.Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return stt.ErrAlreadyStarted
	}
	s.running = true
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err == nil {
		err = s.writeJSON(conn, startMessage{
			Event:          "start",
			LanguageCode:   s.cfg.LanguageCode,
			Continuous:     s.cfg.Continuous,
			InterimResults: s.cfg.InterimResults,
		})
		if err != nil {
			conn.Close()
			err = fmt.Errorf("send start message: %w", err)
		}
	}
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		<-runCtx.Done()
		s.closeConn(conn)
	}()
	if s.opts.Audio != nil {
		go s.forwardAudio(runCtx, conn)
	}
	go s.readLoop(runCtx, conn, h)
	return nil
}

// Stop closes the websocket; the read loop then reports OnEnd. Idempotent.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *Source) dial(ctx context.Context) (*websocket.Conn, error) {
	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		attempt++
		conn, _, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, nil)
		if err != nil {
			s.log.Debug().Err(err).Int("attempt", attempt).Msg("Bridge dial failed")
			return nil, err
		}
		return conn, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.opts.DialRetryDelay)),
		backoff.WithMaxTries(s.opts.DialAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("connect bridge failed after %d attempts (%s): %w",
			attempt, s.opts.DialRetryDelay, err)
	}
	return conn, nil
}

func (s *Source) readLoop(ctx context.Context, conn *websocket.Conn, h stt.Handler) {
	defer func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.conn = nil
		s.cancel = nil
		s.running = false
		s.mu.Unlock()
		h.OnEnd()
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.OnError(fmt.Errorf("bridge read: %w", err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		ev, err := s.decode(payload)
		if err != nil {
			h.OnError(err)
			continue
		}
		h.OnResult(ev)
	}
}

func (s *Source) decode(payload []byte) (models.RecognitionEvent, error) {
	var ev models.RecognitionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode bridge event: %w", err)
	}
	if err := s.validator.Validate(ev); err != nil {
		return ev, err
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	return ev, nil
}

func (s *Source) forwardAudio(ctx context.Context, conn *websocket.Conn) {
	for {
		chunk, err := s.opts.Audio.Read(ctx)
		if err != nil {
			return
		}
		s.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err = conn.WriteMessage(websocket.BinaryMessage, chunk)
		s.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Source) writeJSON(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

func (s *Source) closeConn(conn *websocket.Conn) {
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeTimeout))
	s.writeMu.Unlock()
	conn.Close()
}
