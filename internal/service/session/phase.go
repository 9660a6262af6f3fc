package session

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle of the recognition source within a session.
type Phase int

const (
	// PhaseIdle - not recording, source not running.
	PhaseIdle Phase = iota
	// PhaseRecording - recording intended, source running.
	PhaseRecording
	// PhaseRestarting - recording intended, waiting to (re)start the source.
	PhaseRestarting
	// PhaseStopping - recording no longer intended, waiting for the source to end.
	PhaseStopping
)

// ErrInvalidTransition is returned for a transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid phase transition")

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRecording:
		return "RECORDING"
	case PhaseRestarting:
		return "RESTARTING"
	case PhaseStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// Recording reports whether the phase carries the intent to record.
func (p Phase) Recording() bool {
	return p == PhaseRecording || p == PhaseRestarting
}

// Allowed transitions:
//
//	IDLE ──Start──→ RECORDING ──Stop──→ STOPPING ──end──→ IDLE
//	                  │    ↑                │
//	                end│    │restart      Start
//	                  ↓    │                ↓
//	                RESTARTING ←────────────┘
//	                  │
//	                 Stop (source already ended) ──→ IDLE
var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseRecording},
	PhaseRecording:  {PhaseStopping, PhaseRestarting, PhaseIdle},
	PhaseRestarting: {PhaseRecording, PhaseStopping, PhaseIdle},
	PhaseStopping:   {PhaseIdle, PhaseRestarting},
}

// CanTransition reports whether p may move to next.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// transition validates and returns next.
func (p Phase) transition(next Phase) (Phase, error) {
	if p == next {
		return p, nil
	}
	if !p.CanTransition(next) {
		return p, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p, next)
	}
	return next, nil
}
