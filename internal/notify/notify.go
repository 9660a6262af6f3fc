// Package notify surfaces short user-visible messages such as a failed copy.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/service/display"
)

// Notifier shows a message to the user. Implementations must not block.
type Notifier interface {
	Notify(message string)
}

// Display sends notices to connected display viewers.
type Display struct {
	Hub *display.Hub
}

func (d Display) Notify(message string) {
	d.Hub.Notice(message)
}

// Desktop raises a desktop notification.
type Desktop struct {
	Title string
	log   zerolog.Logger
	send  func(title, message string) error
}

func NewDesktop(title string) *Desktop {
	return &Desktop{
		Title: title,
		log:   logging.WithComponent("notify-desktop"),
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *Desktop) Notify(message string) {
	go func() {
		if err := d.send(d.Title, message); err != nil {
			d.log.Warn().Err(err).Str("message", message).Msg("Desktop notification failed")
		}
	}()
}

// Log writes notices to the service log.
type Log struct {
	Logger zerolog.Logger
}

func NewLog() Log {
	return Log{Logger: logging.WithComponent("notify")}
}

func (l Log) Notify(message string) {
	l.Logger.Warn().Str("notice", message).Msg("User notice")
}

// Multi fans a message out to every notifier.
type Multi []Notifier

func (m Multi) Notify(message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(message)
		}
	}
}
