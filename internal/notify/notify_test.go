package notify

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/service/display"
)

type recorder struct {
	messages []string
}

func (r *recorder) Notify(message string) {
	r.messages = append(r.messages, message)
}

func TestDisplay_Notify(t *testing.T) {
	hub := display.NewHub(4)
	defer hub.Close()

	sub := hub.Subscribe()
	defer sub.Cancel()

	Display{Hub: hub}.Notify("Failed to copy text :(")

	select {
	case u := <-sub.C:
		if u.Type != display.UpdateNotice || u.Text != "Failed to copy text :(" {
			t.Errorf("unexpected update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("notice not delivered")
	}
}

func TestDesktop_Notify(t *testing.T) {
	d := NewDesktop("Dictation")
	got := make(chan string, 1)
	d.send = func(title, message string) error {
		got <- title + ": " + message
		return errors.New("no notification daemon")
	}

	d.Notify("Failed to copy text :(")

	select {
	case msg := <-got:
		if msg != "Dictation: Failed to copy text :(" {
			t.Errorf("unexpected notification %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("desktop notification not sent")
	}
}

func TestLog_Notify(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: zerolog.New(&buf)}

	l.Notify("Failed to copy text :(")

	if !strings.Contains(buf.String(), `"notice":"Failed to copy text :("`) {
		t.Errorf("expected notice in log output, got %s", buf.String())
	}
}

func TestMulti_Notify(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, nil, b}

	m.Notify("hello")

	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Errorf("expected every notifier to receive the message, got %v and %v", a.messages, b.messages)
	}
}
