package dictation

import (
	"strings"

	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/service/display"
)

// Kind classifies what a reducer step did.
type Kind int

const (
	// KindNone - no usable final transcript; nothing changed.
	KindNone Kind = iota
	// KindCommand - a command matched and its fragment was appended.
	KindCommand
	// KindLiteral - the transcript itself was appended.
	KindLiteral
	// KindDuplicate - the transcript repeated the previous one and was suppressed.
	KindDuplicate
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCommand:
		return "command"
	case KindLiteral:
		return "literal"
	case KindDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Step is the outcome of reducing one recognition event.
type Step struct {
	Kind           Kind
	Transcript     string
	Confidence     float64
	Command        string
	Fragment       string
	LastTranscript string
}

// Changed reports whether the step accepted a final transcript.
// Accepted steps update the duplicate baseline and signal the display,
// even when nothing is appended.
func (s Step) Changed() bool {
	return s.Kind != KindNone
}

// FinalTranscript returns the trimmed top transcript of the most recent
// final result in the event. Final results without alternatives are skipped.
func FinalTranscript(ev models.RecognitionEvent) (models.Alternative, bool) {
	var (
		latest models.Alternative
		found  bool
	)
	for _, r := range ev.Results {
		if !r.IsFinal {
			continue
		}
		alt, ok := r.TopAlternative()
		if !ok {
			continue
		}
		latest = alt
		found = true
	}
	latest.Transcript = strings.TrimSpace(latest.Transcript)
	return latest, found
}

// Reduce computes the step for ev given the previous duplicate baseline.
// It has no side effects.
func Reduce(commands []Command, last string, ev models.RecognitionEvent) Step {
	alt, ok := FinalTranscript(ev)
	if !ok || alt.Transcript == "" {
		return Step{Kind: KindNone, LastTranscript: last}
	}
	t := alt.Transcript

	step := Step{
		Transcript:     t,
		Confidence:     alt.Confidence,
		LastTranscript: t,
	}
	if cmd, ok := Match(commands, t); ok {
		step.Kind = KindCommand
		step.Command = cmd.Label
		step.Fragment = cmd.Fragment
		return step
	}
	if t == last {
		step.Kind = KindDuplicate
		return step
	}
	step.Kind = KindLiteral
	step.Fragment = t + " "
	return step
}

// Reducer applies reduction steps to a display surface.
type Reducer struct {
	commands []Command
	surface  display.Surface
}

// NewReducer creates a reducer writing to surface. A nil commands slice
// uses DefaultCommands.
func NewReducer(surface display.Surface, commands []Command) *Reducer {
	if commands == nil {
		commands = DefaultCommands()
	}
	return &Reducer{commands: commands, surface: surface}
}

// Apply reduces ev against *last, appends the resulting fragment, updates
// *last and scrolls the surface to the end. Events without a usable final
// transcript leave everything untouched.
func (r *Reducer) Apply(last *string, ev models.RecognitionEvent) Step {
	step := Reduce(r.commands, *last, ev)
	if !step.Changed() {
		return step
	}
	if step.Fragment != "" {
		r.surface.Append(step.Fragment)
	}
	*last = step.LastTranscript
	r.surface.ScrollToEnd()
	return step
}

// Commands returns the reducer's command set in priority order.
func (r *Reducer) Commands() []Command {
	return r.commands
}
