package models

// Event types published for transcript activity.
const (
	EventTypeInterim  = "dictation.transcript.interim"
	EventTypeFragment = "dictation.transcript.fragment"
)

// TranscriptInterim represents a provisional transcript preview.
// Interim transcripts never change the dictation buffer.
type TranscriptInterim struct {
	EventType   string `json:"eventType" validate:"eq=dictation.transcript.interim"`
	SessionID   string `json:"sessionId" validate:"required"`
	UtteranceID string `json:"utteranceId" validate:"required"`
	Timestamp   int64  `json:"timestamp" validate:"gt=0"`
	Text        string `json:"text"`
}

// TranscriptFragment describes one accepted final transcript and what it
// contributed to the dictation buffer.
type TranscriptFragment struct {
	EventType   string  `json:"eventType" validate:"eq=dictation.transcript.fragment"`
	SessionID   string  `json:"sessionId" validate:"required"`
	UtteranceID string  `json:"utteranceId" validate:"required"`
	Timestamp   int64   `json:"timestamp" validate:"gt=0"`
	Transcript  string  `json:"transcript" validate:"required"`
	Kind        string  `json:"kind" validate:"oneof=command literal duplicate"`
	Command     string  `json:"command,omitempty" validate:"required_if=Kind command"`
	Fragment    string  `json:"fragment"`
	Confidence  float64 `json:"confidence,omitempty" validate:"gte=0,lte=1"`
}

// SessionStatus is a point-in-time view of the dictation session.
type SessionStatus struct {
	SessionID   string `json:"sessionId"`
	Phase       string `json:"phase"`
	Recording   bool   `json:"recording"`
	Provider    string `json:"provider"`
	Restarts    int    `json:"restarts"`
	BufferBytes int    `json:"bufferBytes"`
}
