// Package utterance assigns identifiers to recognised utterances and tracks
// whether an utterance is still collecting interim results.
package utterance

import (
	"fmt"
	"sync/atomic"
)

// Generator produces utterance ids unique within the process.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns "<sessionId>-utt-<n>". The counter is shared across sessions.
func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-utt-%d", sessionId, n)
}
