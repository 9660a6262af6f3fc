package utterance

import "fmt"

// State of the utterance currently being recognised.
type State int

const (
	// StateIdle - no utterance open; the next result opens one.
	StateIdle State = iota
	// StateOpen - interim results seen, final pending.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpen:
		return "OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Tracker follows one recognition stream:
//
//	IDLE ──Interim()──→ OPEN ──Final()──→ IDLE
//	  │                   │
//	  └────Final()────────┘ (final with no interims opens and closes at once)
//	                      └──Drop()──→ IDLE (source ended before a final)
//
// Interims share the id of the final that closes them. Not safe for
// concurrent use; the session loop owns it.
type Tracker struct {
	gen       *Generator
	sessionId string
	current   string
	state     State
}

func NewTracker(gen *Generator, sessionId string) *Tracker {
	if gen == nil {
		gen = NewGenerator()
	}
	return &Tracker{gen: gen, sessionId: sessionId}
}

func (t *Tracker) State() State {
	return t.state
}

// Current returns the open utterance id, if any.
func (t *Tracker) Current() (string, bool) {
	if t.state != StateOpen {
		return "", false
	}
	return t.current, true
}

// Interim returns the id of the open utterance, opening one if needed.
func (t *Tracker) Interim() string {
	if t.state == StateIdle {
		t.current = t.gen.Next(t.sessionId)
		t.state = StateOpen
	}
	return t.current
}

// Final returns the id the final result belongs to and closes it.
func (t *Tracker) Final() string {
	id := t.Interim()
	t.state = StateIdle
	return id
}

// Drop abandons the open utterance. Returns the dropped id and true, or
// false when nothing was open.
func (t *Tracker) Drop() (string, bool) {
	if t.state != StateOpen {
		return "", false
	}
	id := t.current
	t.state = StateIdle
	return id, true
}

// Reset drops any open utterance and rebinds the tracker to a new session.
func (t *Tracker) Reset(sessionId string) {
	t.sessionId = sessionId
	t.current = ""
	t.state = StateIdle
}
