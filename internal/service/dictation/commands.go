// Package dictation folds final recognition results into dictated text,
// turning spoken punctuation words into punctuation.
package dictation

import "regexp"

// Command labels.
const (
	CommandParagraph = "paragraph"
	CommandFullStop  = "fullStop"
	CommandComma     = "comma"
	CommandQuestion  = "question"
)

// Command maps a spoken keyword to a fragment inserted instead of the words.
type Command struct {
	Label    string
	Pattern  *regexp.Regexp
	Fragment string
}

// Matches reports whether the transcript contains the command keyword.
func (c Command) Matches(transcript string) bool {
	return c.Pattern.MatchString(transcript)
}

// NewCommand builds a case-insensitive whole-word command for phrase.
func NewCommand(label, phrase, fragment string) Command {
	return Command{
		Label:    label,
		Pattern:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
		Fragment: fragment,
	}
}

// DefaultCommands returns the built-in commands in priority order.
func DefaultCommands() []Command {
	return []Command{
		NewCommand(CommandParagraph, "paragraph", "\n\n"),
		NewCommand(CommandFullStop, "full stop", ". "),
		NewCommand(CommandComma, "comma", ", "),
		NewCommand(CommandQuestion, "question", "? "),
	}
}

// Match returns the first command in commands that matches transcript.
func Match(commands []Command, transcript string) (Command, bool) {
	for _, c := range commands {
		if c.Matches(transcript) {
			return c, true
		}
	}
	return Command{}, false
}
