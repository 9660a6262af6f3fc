// Package display provides the surface that shows the dictation buffer
// and fans its updates out to connected viewers.
package display

import "strings"

// Surface is the text area the dictation buffer is rendered on.
type Surface interface {
	// Append adds text to the end of the buffer.
	Append(text string)

	// Clear empties the buffer.
	Clear()

	// Read returns the full buffer contents.
	Read() string

	// ScrollToEnd signals that the newest content should be brought into view.
	ScrollToEnd()
}

// Update types delivered to observers.
const (
	UpdateScroll  = "scroll"
	UpdateClear   = "clear"
	UpdateInterim = "interim"
	UpdateNotice  = "notice"
	UpdateStatus  = "status"
)

// Update is a snapshot of the buffer (or a side message) sent to viewers.
type Update struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Revision uint64 `json:"revision"`
}

// Observer receives buffer updates.
type Observer func(Update)

// Buffer is an in-memory Surface.
// It is not safe for concurrent use; the session loop owns it.
type Buffer struct {
	sb       strings.Builder
	revision uint64
	observer Observer
}

// NewBuffer creates an empty buffer that reports updates to observer.
// observer may be nil.
func NewBuffer(observer Observer) *Buffer {
	return &Buffer{observer: observer}
}

// Append adds text to the buffer.
func (b *Buffer) Append(text string) {
	if text == "" {
		return
	}
	b.sb.WriteString(text)
	b.revision++
}

// Clear empties the buffer and notifies the observer.
func (b *Buffer) Clear() {
	b.sb.Reset()
	b.revision++
	b.notify(UpdateClear)
}

// Read returns the buffer contents.
func (b *Buffer) Read() string {
	return b.sb.String()
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int {
	return b.sb.Len()
}

// Revision returns a counter bumped on every mutation.
func (b *Buffer) Revision() uint64 {
	return b.revision
}

// ScrollToEnd notifies the observer with the current contents.
func (b *Buffer) ScrollToEnd() {
	b.notify(UpdateScroll)
}

func (b *Buffer) notify(kind string) {
	if b.observer == nil {
		return
	}
	b.observer(Update{Type: kind, Text: b.sb.String(), Revision: b.revision})
}
