// Package clipboard writes dictated text to a clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// Provider names accepted by New.
const (
	ProviderSystem = "system"
	ProviderMemory = "memory"
	ProviderNone   = "none"
)

// ErrUnavailable is returned when no clipboard can be written.
var ErrUnavailable = errors.New("clipboard unavailable")

// Writer places text on a clipboard.
type Writer interface {
	WriteText(text string) error
}

// New returns the writer for provider.
func New(provider string) (Writer, error) {
	switch provider {
	case ProviderSystem, "":
		return System{}, nil
	case ProviderMemory:
		return &Memory{}, nil
	case ProviderNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unsupported clipboard provider: %s", provider)
	}
}

// System writes to the operating system clipboard. On Linux it needs
// xclip, xsel or wl-copy on PATH.
type System struct{}

func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Memory keeps the last written text in process.
type Memory struct {
	mu   sync.Mutex
	text string
	n    int
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.n++
	return nil
}

// Text returns the last written text.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes returns how many times WriteText was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

// None always fails; for headless deployments where copy must be reported
// as unavailable.
type None struct{}

func (None) WriteText(string) error {
	return ErrUnavailable
}
