// Package mock provides a scripted recognition source for running without
// cloud credentials. It replays utterances as progressive interim results
// followed by one final result, and ends the run where the script says the
// recognizer would stop on its own.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-speech-dictation-service/internal/service/stt"
)

// Utterance is one scripted utterance.
type Utterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
	EndRun     bool     // Source ends after this utterance
}

// DefaultScript dictates "hello world , goodbye ". The recognizer repeats
// itself once and stops after the second utterance, so the session has to
// restart it to hear the rest.
var DefaultScript = []Utterance{
	{
		Partials:   []string{"hello", "hello wor"},
		Final:      "hello world",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"hello world"},
		Final:      "hello world",
		Confidence: 0.88,
		EndRun:     true,
	},
	{
		Partials:   []string{"com"},
		Final:      "comma",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"good", "goodb"},
		Final:      "goodbye",
		Confidence: 0.91,
	},
}

// Source implements stt.Source by replaying a script. The script position
// survives restarts; once exhausted, a run stays silent until stopped.
type Source struct {
	script   []Utterance
	interval time.Duration
	interim  bool

	mu      sync.Mutex
	cursor  int
	cancel  context.CancelFunc
	running bool
	starts  int
}

// New creates a mock source. A nil script uses DefaultScript.
func New(script []Utterance, interval time.Duration, cfg stt.Config) *Source {
	if script == nil {
		script = DefaultScript
	}
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	return &Source{
		script:   script,
		interval: interval,
		interim:  cfg.InterimResults,
	}
}

func (s *Source) Name() string {
	return "mock"
}

// Start begins replaying from the current script position.
func (s *Source) Start(ctx context.Context, h stt.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return stt.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.starts++

	go s.run(runCtx, h)
	return nil
}

// Stop ends the current run. Idempotent.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Starts returns how many runs have been started.
func (s *Source) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *Source) run(ctx context.Context, h stt.Handler) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		h.OnEnd()
	}()

	for {
		utt, ok := s.next()
		if !ok {
			// Script exhausted: behave like an open microphone in a silent room
			<-ctx.Done()
			return
		}

		if s.interim {
			for _, p := range utt.Partials {
				if !wait(ctx, s.interval) {
					return
				}
				h.OnResult(stt.InterimEvent(p))
			}
		}

		if !wait(ctx, s.interval) {
			return
		}
		h.OnResult(stt.FinalEvent(utt.Final, utt.Confidence))
		s.advance()

		if utt.EndRun {
			return
		}
	}
}

func (s *Source) next() (Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.script) {
		return Utterance{}, false
	}
	return s.script[s.cursor], true
}

func (s *Source) advance() {
	s.mu.Lock()
	s.cursor++
	s.mu.Unlock()
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
