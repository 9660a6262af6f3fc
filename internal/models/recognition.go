// Package models defines the data structures for recognition and transcript events.
package models

import "time"

// Alternative is one candidate transcription of a recognition result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// RecognitionResult is a single interim or final result from a recognition source.
// Alternatives are ordered by likelihood; index 0 is the top alternative.
type RecognitionResult struct {
	IsFinal      bool          `json:"isFinal"`
	Alternatives []Alternative `json:"alternatives" validate:"dive"`
}

// TopAlternative returns the most likely alternative, if any.
func (r RecognitionResult) TopAlternative() (Alternative, bool) {
	if len(r.Alternatives) == 0 {
		return Alternative{}, false
	}
	return r.Alternatives[0], true
}

// RecognitionEvent is one delivery of results from a recognition source.
type RecognitionEvent struct {
	ResultIndex int                 `json:"resultIndex" validate:"gte=0"`
	Results     []RecognitionResult `json:"results" validate:"dive"`
	ReceivedAt  time.Time           `json:"receivedAt"`
}

// HasFinal reports whether any result in the event is final.
func (e RecognitionEvent) HasFinal() bool {
	for _, r := range e.Results {
		if r.IsFinal {
			return true
		}
	}
	return false
}

// LatestInterim returns the top transcript of the last interim result, if any.
func (e RecognitionEvent) LatestInterim() (string, bool) {
	for i := len(e.Results) - 1; i >= 0; i-- {
		r := e.Results[i]
		if r.IsFinal {
			continue
		}
		if alt, ok := r.TopAlternative(); ok {
			return alt.Transcript, true
		}
	}
	return "", false
}
