// Package stt defines the interface for recognition sources (mock, Google
// Cloud Speech, websocket bridge).
package stt

import (
	"context"
	"errors"
	"time"

	"ai-speech-dictation-service/internal/models"
)

var (
	ErrAlreadyStarted = errors.New("recognition source already started")
	ErrNotStarted     = errors.New("recognition source not started")
)

// Handler receives recognition activity from a Source. Calls may come from
// any goroutine but never concurrently for one Source run.
type Handler interface {
	// OnResult is called for every delivery of interim and final results.
	OnResult(ev models.RecognitionEvent)

	// OnError is called for recognition errors. The source may still end
	// afterwards via OnEnd.
	OnError(err error)

	// OnEnd is called exactly once per successful Start, whether the source
	// ended on its own or was stopped.
	OnEnd()
}

// Source is a recognition provider. A Source may be started again after it
// ended.
type Source interface {
	Name() string

	// Start begins recognition and returns once the provider accepted the
	// session. Results are delivered asynchronously to h.
	Start(ctx context.Context, h Handler) error

	// Stop requests the current run to end. It does not wait for OnEnd.
	// Idempotent.
	Stop() error
}

// Config is the recognition configuration shared by providers.
type Config struct {
	LanguageCode   string
	Continuous     bool
	InterimResults bool
	SampleRateHz   int32
	AudioEncoding  string
}

// DefaultConfig returns the dictation defaults.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		Continuous:     true,
		InterimResults: true,
		SampleRateHz:   16000,
		AudioEncoding:  "LINEAR16",
	}
}

// InterimEvent builds an event carrying a single interim result.
func InterimEvent(text string) models.RecognitionEvent {
	return models.RecognitionEvent{
		Results: []models.RecognitionResult{
			{Alternatives: []models.Alternative{{Transcript: text}}},
		},
		ReceivedAt: time.Now(),
	}
}

// FinalEvent builds an event carrying a single final result.
func FinalEvent(text string, confidence float64) models.RecognitionEvent {
	return models.RecognitionEvent{
		Results: []models.RecognitionResult{
			{IsFinal: true, Alternatives: []models.Alternative{{Transcript: text, Confidence: confidence}}},
		},
		ReceivedAt: time.Now(),
	}
}
