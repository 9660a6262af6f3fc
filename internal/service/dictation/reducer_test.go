package dictation

import (
	"testing"

	"ai-speech-dictation-service/internal/models"
)

// testSurface implements display.Surface and records scroll signals.
type testSurface struct {
	text    string
	scrolls int
	clears  int
}

func (s *testSurface) Append(text string) { s.text += text }
func (s *testSurface) Clear()             { s.text = ""; s.clears++ }
func (s *testSurface) Read() string       { return s.text }
func (s *testSurface) ScrollToEnd()       { s.scrolls++ }

func final(text string) models.RecognitionEvent {
	return models.RecognitionEvent{Results: []models.RecognitionResult{
		{IsFinal: true, Alternatives: []models.Alternative{{Transcript: text, Confidence: 0.9}}},
	}}
}

func interim(text string) models.RecognitionEvent {
	return models.RecognitionEvent{Results: []models.RecognitionResult{
		{IsFinal: false, Alternatives: []models.Alternative{{Transcript: text}}},
	}}
}

func TestReducer_LiteralAppended(t *testing.T) {
	surface := &testSurface{}
	r := NewReducer(surface, nil)
	last := "something else"

	step := r.Apply(&last, final("hello world"))

	if step.Kind != KindLiteral {
		t.Errorf("expected KindLiteral, got %v", step.Kind)
	}
	if surface.text != "hello world " {
		t.Errorf("expected %q, got %q", "hello world ", surface.text)
	}
	if last != "hello world" {
		t.Errorf("expected last transcript 'hello world', got %q", last)
	}
	if surface.scrolls != 1 {
		t.Errorf("expected 1 scroll, got %d", surface.scrolls)
	}
}

func TestReducer_DuplicateSuppressed(t *testing.T) {
	surface := &testSurface{text: "hello world "}
	r := NewReducer(surface, nil)
	last := "hello world"

	step := r.Apply(&last, final("hello world"))

	if step.Kind != KindDuplicate {
		t.Errorf("expected KindDuplicate, got %v", step.Kind)
	}
	if surface.text != "hello world " {
		t.Errorf("buffer should be unchanged, got %q", surface.text)
	}
	if last != "hello world" {
		t.Errorf("expected last transcript unchanged, got %q", last)
	}
	if surface.scrolls != 1 {
		t.Errorf("duplicate should still signal the display, got %d scrolls", surface.scrolls)
	}
}

func TestReducer_TranscriptIsTrimmed(t *testing.T) {
	surface := &testSurface{}
	r := NewReducer(surface, nil)
	last := ""

	r.Apply(&last, final("  spaced out \t"))

	if surface.text != "spaced out " {
		t.Errorf("expected trimmed transcript, got %q", surface.text)
	}
	if last != "spaced out" {
		t.Errorf("expected trimmed last transcript, got %q", last)
	}
}

func TestReducer_Commands(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		command    string
		fragment   string
	}{
		{"paragraph", "paragraph", CommandParagraph, "\n\n"},
		{"full stop", "full stop", CommandFullStop, ". "},
		{"comma", "comma", CommandComma, ", "},
		{"question", "question", CommandQuestion, "? "},
		{"case insensitive", "New PARAGRAPH", CommandParagraph, "\n\n"},
		{"embedded in sentence", "add a comma here", CommandComma, ", "},
		{"paragraph beats full stop", "full stop paragraph", CommandParagraph, "\n\n"},
		{"full stop beats comma", "comma full stop", CommandFullStop, ". "},
		{"comma beats question", "question comma", CommandComma, ", "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := &testSurface{text: "x "}
			r := NewReducer(surface, nil)
			last := ""

			step := r.Apply(&last, final(tt.transcript))

			if step.Kind != KindCommand {
				t.Fatalf("expected KindCommand, got %v", step.Kind)
			}
			if step.Command != tt.command {
				t.Errorf("expected command %s, got %s", tt.command, step.Command)
			}
			if surface.text != "x "+tt.fragment {
				t.Errorf("expected buffer %q, got %q", "x "+tt.fragment, surface.text)
			}
			if last != tt.transcript {
				t.Errorf("command should become the duplicate baseline, got %q", last)
			}
		})
	}
}

func TestReducer_WholeWordOnly(t *testing.T) {
	tests := []string{
		"paragraphs",
		"commas are fine",
		"questionable",
		"fullstop",
	}

	for _, transcript := range tests {
		t.Run(transcript, func(t *testing.T) {
			step := Reduce(DefaultCommands(), "", final(transcript))
			if step.Kind != KindLiteral {
				t.Errorf("expected literal for %q, got %v (%s)", transcript, step.Kind, step.Command)
			}
		})
	}
}

func TestReducer_HyphenIsWordBoundary(t *testing.T) {
	step := Reduce(DefaultCommands(), "", final("comma-less"))
	if step.Kind != KindCommand || step.Command != CommandComma {
		t.Errorf("expected comma command, got %v (%s)", step.Kind, step.Command)
	}
}

func TestReducer_InterimNeverMutates(t *testing.T) {
	surface := &testSurface{text: "keep "}
	r := NewReducer(surface, nil)
	last := "keep"

	step := r.Apply(&last, interim("comma"))

	if step.Changed() {
		t.Errorf("interim-only event should not change anything, got %v", step.Kind)
	}
	if surface.text != "keep " || last != "keep" {
		t.Errorf("state mutated by interim: text=%q last=%q", surface.text, last)
	}
	if surface.scrolls != 0 {
		t.Errorf("interim should not scroll, got %d", surface.scrolls)
	}
}

func TestReducer_EmptyTranscriptIgnored(t *testing.T) {
	surface := &testSurface{}
	r := NewReducer(surface, nil)
	last := "previous"

	step := r.Apply(&last, final("   "))

	if step.Changed() {
		t.Error("blank transcript should be a no-op")
	}
	if last != "previous" {
		t.Errorf("expected last transcript untouched, got %q", last)
	}
	if surface.scrolls != 0 {
		t.Errorf("blank transcript should not scroll, got %d", surface.scrolls)
	}
}

func TestReducer_EmptyEvent(t *testing.T) {
	step := Reduce(DefaultCommands(), "x", models.RecognitionEvent{})
	if step.Kind != KindNone {
		t.Errorf("expected KindNone, got %v", step.Kind)
	}
	if step.LastTranscript != "x" {
		t.Errorf("expected baseline preserved, got %q", step.LastTranscript)
	}
}

func TestFinalTranscript_LatestFinalWins(t *testing.T) {
	ev := models.RecognitionEvent{Results: []models.RecognitionResult{
		{IsFinal: true, Alternatives: []models.Alternative{{Transcript: "first"}}},
		{IsFinal: false, Alternatives: []models.Alternative{{Transcript: "interim"}}},
		{IsFinal: true, Alternatives: []models.Alternative{{Transcript: " second ", Confidence: 0.8}, {Transcript: "other"}}},
		{IsFinal: false, Alternatives: []models.Alternative{{Transcript: "trailing interim"}}},
	}}

	alt, ok := FinalTranscript(ev)
	if !ok {
		t.Fatal("expected a final transcript")
	}
	if alt.Transcript != "second" {
		t.Errorf("expected 'second', got %q", alt.Transcript)
	}
	if alt.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", alt.Confidence)
	}
}

func TestFinalTranscript_SkipsFinalWithoutAlternatives(t *testing.T) {
	ev := models.RecognitionEvent{Results: []models.RecognitionResult{
		{IsFinal: true, Alternatives: []models.Alternative{{Transcript: "kept"}}},
		{IsFinal: true},
	}}

	alt, ok := FinalTranscript(ev)
	if !ok || alt.Transcript != "kept" {
		t.Errorf("expected 'kept', got %q (ok=%v)", alt.Transcript, ok)
	}
}

func TestReducer_EndToEnd(t *testing.T) {
	surface := &testSurface{}
	r := NewReducer(surface, nil)
	last := ""

	var kinds []Kind
	for _, text := range []string{"hello world", "hello world", "comma", "goodbye"} {
		kinds = append(kinds, r.Apply(&last, final(text)).Kind)
	}

	want := "hello world , goodbye "
	if surface.text != want {
		t.Errorf("expected %q, got %q", want, surface.text)
	}
	wantKinds := []Kind{KindLiteral, KindDuplicate, KindCommand, KindLiteral}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] {
			t.Errorf("step %d: expected %v, got %v", i, wantKinds[i], kinds[i])
		}
	}
	if last != "goodbye" {
		t.Errorf("expected last 'goodbye', got %q", last)
	}
}

func TestReducer_LiteralAfterMatchingCommandWord(t *testing.T) {
	// A command word becomes the baseline, so a following literal is
	// compared against the command rather than the previous literal.
	surface := &testSurface{}
	r := NewReducer(surface, nil)
	last := ""

	r.Apply(&last, final("hello"))
	r.Apply(&last, final("comma"))
	r.Apply(&last, final("hello"))

	if surface.text != "hello , hello " {
		t.Errorf("expected %q, got %q", "hello , hello ", surface.text)
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindNone:      "none",
		KindCommand:   "command",
		KindLiteral:   "literal",
		KindDuplicate: "duplicate",
		Kind(42):      "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %s, want %s", int(k), got, want)
		}
	}
}
