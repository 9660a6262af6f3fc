// Package session owns one dictation session: recording intent, the
// recognition source lifecycle, the transcript buffer and the user actions
// (toggle, clear, copy).
//
// All state is confined to a single loop goroutine. Recognition callbacks,
// source-ended signals, restart timers and user actions are posted to it as
// closures, so the buffer and LastTranscript are never touched concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/clipboard"
	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/notify"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/observability/metrics"
	"ai-speech-dictation-service/internal/schema"
	"ai-speech-dictation-service/internal/service/dictation"
	"ai-speech-dictation-service/internal/service/display"
	"ai-speech-dictation-service/internal/service/stt"
	"ai-speech-dictation-service/internal/service/utterance"
)

// CopyFailedMessage is shown when the buffer cannot be copied.
const CopyFailedMessage = "Failed to copy text :("

var (
	ErrClosed       = errors.New("session closed")
	ErrSourceStart  = errors.New("recognition source failed to start")
	ErrNotRecording = errors.New("session is not recording")
)

// State is the dictation state visible to callers.
type State struct {
	Recording      bool
	LastTranscript string
}

// Publisher receives transcript events. events.Publisher implements it.
type Publisher interface {
	PublishInterim(ctx context.Context, ev models.TranscriptInterim) error
	PublishFragment(ctx context.Context, ev models.TranscriptFragment) error
}

// Options tune the controller.
type Options struct {
	AutoRestart         bool
	RestartInitialDelay time.Duration
	RestartMaxDelay     time.Duration
	EventBuffer         int
	Commands            []dictation.Command
}

// DefaultOptions restarts the source whenever it ends while recording.
func DefaultOptions() Options {
	return Options{
		AutoRestart:         true,
		RestartInitialDelay: 250 * time.Millisecond,
		RestartMaxDelay:     10 * time.Second,
		EventBuffer:         64,
	}
}

// AudioQueue holds uploaded audio waiting for the source. audio.Pipe
// implements it.
type AudioQueue interface {
	Drain() int
}

// Deps are the collaborators of a controller. Only Source is required.
type Deps struct {
	Source    stt.Source
	Audio     AudioQueue // nil when the source captures its own audio
	Surface   display.Surface
	Preview   display.Observer // interim and status updates
	Clipboard clipboard.Writer
	Notifier  notify.Notifier
	Publisher Publisher
	Metrics   *metrics.Metrics
}

// Controller runs one dictation session.
type Controller struct {
	id        string
	opts      Options
	source    stt.Source
	audio     AudioQueue
	surface   display.Surface
	preview   display.Observer
	clipboard clipboard.Writer
	notifier  notify.Notifier
	publisher Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
	handler   *sourceHandler

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	cmds   chan func()
	quit   chan struct{}
	done   chan struct{}

	// Loop-owned.
	state      State
	reducer    *dictation.Reducer
	utterances *utterance.Tracker
	phase      Phase
	running    bool
	gotResults bool
	restarts   int
	backoff    *backoff.ExponentialBackOff
	timer      *time.Timer
}

// New creates a controller and starts its loop. The session starts idle.
func New(deps Deps, opts Options) *Controller {
	if deps.Surface == nil {
		deps.Surface = display.NewBuffer(nil)
	}
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.None{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLog()
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultOptions().EventBuffer
	}

	b := backoff.NewExponentialBackOff()
	if opts.RestartInitialDelay > 0 {
		b.InitialInterval = opts.RestartInitialDelay
	}
	if opts.RestartMaxDelay > 0 {
		b.MaxInterval = opts.RestartMaxDelay
	}
	b.Reset()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:         id,
		opts:       opts,
		source:     deps.Source,
		audio:      deps.Audio,
		surface:    deps.Surface,
		preview:    deps.Preview,
		clipboard:  deps.Clipboard,
		notifier:   deps.Notifier,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		log:        logging.WithSource(id, deps.Source.Name()),
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan func(), opts.EventBuffer),
		cmds:       make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		reducer:    dictation.NewReducer(deps.Surface, opts.Commands),
		utterances: utterance.NewTracker(utterance.NewGenerator(), id),
		backoff:    b,
	}
	c.handler = &sourceHandler{c: c}

	go c.loop()

	c.log.Info().Bool("autoRestart", opts.AutoRestart).Msg("Dictation session created")
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// Provider returns the recognition source name.
func (c *Controller) Provider() string {
	return c.source.Name()
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		// Recognition activity first, so user actions observe every
		// event that was already queued.
		select {
		case fn := <-c.events:
			fn()
			continue
		default:
		}

		select {
		case fn := <-c.events:
			fn()
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.cmds <- wrapped:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// post queues fn on the loop without waiting.
func (c *Controller) post(ch chan func(), fn func()) {
	select {
	case ch <- fn:
	case <-c.done:
	}
}

// Toggle flips the recording intent and returns the new value.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	var recording bool
	var startErr error
	err := c.do(ctx, func() {
		if c.state.Recording {
			c.stop()
		} else {
			startErr = c.start()
		}
		recording = c.state.Recording
	})
	if err != nil {
		return false, err
	}
	return recording, startErr
}

// Start begins recording. A source that fails to start leaves the session
// idle and the error is returned. Starting while recording is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	var startErr error
	if err := c.do(ctx, func() { startErr = c.start() }); err != nil {
		return err
	}
	return startErr
}

// Stop ends recording. Results the source already delivered are still
// applied. Stopping while idle is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	return c.do(ctx, c.stop)
}

// Clear empties the buffer and forgets the last transcript.
func (c *Controller) Clear(ctx context.Context) error {
	return c.do(ctx, func() {
		c.surface.Clear()
		c.state.LastTranscript = ""
		c.metrics.SetBufferBytes(0)
		c.log.Info().Msg("Transcript cleared")
	})
}

// Read returns the buffer contents.
func (c *Controller) Read(ctx context.Context) (string, error) {
	var text string
	err := c.do(ctx, func() { text = c.surface.Read() })
	return text, err
}

// Copy writes the buffer to the clipboard. On failure the user is notified
// and the buffer is left untouched.
func (c *Controller) Copy(ctx context.Context) error {
	text, err := c.Read(ctx)
	if err != nil {
		return err
	}

	err = c.clipboard.WriteText(text)
	c.metrics.RecordCopy(err)
	if err != nil {
		c.log.Warn().Err(err).Int("bytes", len(text)).Msg("Copy to clipboard failed")
		c.notifier.Notify(CopyFailedMessage)
		return fmt.Errorf("copy transcript: %w", err)
	}

	c.log.Info().Int("bytes", len(text)).Msg("Transcript copied")
	return nil
}

// State returns the recording intent and last accepted transcript.
func (c *Controller) State(ctx context.Context) (State, error) {
	var st State
	err := c.do(ctx, func() { st = c.state })
	return st, err
}

// Status returns a snapshot of the session.
func (c *Controller) Status(ctx context.Context) (models.SessionStatus, error) {
	var st models.SessionStatus
	err := c.do(ctx, func() { st = c.status() })
	return st, err
}

// Close stops recording and the loop. The source is asked to stop but its
// end is not awaited.
func (c *Controller) Close() error {
	err := c.do(context.Background(), func() {
		c.state.Recording = false
		if c.timer != nil {
			c.timer.Stop()
		}
		if c.running {
			c.source.Stop()
		}
		select {
		case <-c.quit:
		default:
			close(c.quit)
		}
	})
	c.cancel()
	<-c.done
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (c *Controller) status() models.SessionStatus {
	return models.SessionStatus{
		SessionID:   c.id,
		Phase:       c.phase.String(),
		Recording:   c.state.Recording,
		Provider:    c.source.Name(),
		Restarts:    c.restarts,
		BufferBytes: len(c.surface.Read()),
	}
}

// start runs on the loop.
func (c *Controller) start() error {
	switch c.phase {
	case PhaseRecording, PhaseRestarting:
		return nil
	case PhaseStopping:
		// Previous run still ending; restart as soon as it does.
		c.drainAudio()
		c.state.Recording = true
		c.setPhase(PhaseRestarting)
		return nil
	}

	c.backoff.Reset()
	c.drainAudio()
	if err := c.startSource(); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceStart, err)
	}
	c.state.Recording = true
	c.setPhase(PhaseRecording)
	return nil
}

// stop runs on the loop.
func (c *Controller) stop() {
	c.state.Recording = false

	switch c.phase {
	case PhaseRecording:
		c.source.Stop()
		c.setPhase(PhaseStopping)
	case PhaseRestarting:
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		if c.running {
			c.setPhase(PhaseStopping)
		} else {
			c.setPhase(PhaseIdle)
		}
	}
}

// drainAudio drops audio queued while not recording so a new run never
// transcribes it.
func (c *Controller) drainAudio() {
	if c.audio == nil {
		return
	}
	if n := c.audio.Drain(); n > 0 {
		c.log.Info().Int("chunks", n).Msg("Discarded audio queued while idle")
	}
}

func (c *Controller) startSource() error {
	err := c.source.Start(c.ctx, c.handler)
	c.metrics.RecordSourceStart(c.source.Name(), err)
	if err != nil {
		c.log.Error().Err(err).Msg("Recognition source failed to start")
		return err
	}
	c.running = true
	c.gotResults = false
	c.log.Info().Msg("Recognition source started")
	return nil
}

// restart runs on the loop when a restart timer fires.
func (c *Controller) restart() {
	c.timer = nil
	if c.phase != PhaseRestarting || c.running {
		return
	}

	c.restarts++
	c.metrics.RecordSourceRestart(c.source.Name())
	if err := c.startSource(); err != nil {
		c.metrics.RecordSourceError(c.source.Name(), "restart")
		c.scheduleRestart(c.backoff.NextBackOff())
		return
	}
	c.setPhase(PhaseRecording)
}

func (c *Controller) scheduleRestart(delay time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.log.Debug().Dur("delay", delay).Int("restarts", c.restarts).Msg("Scheduling source restart")
	c.timer = time.AfterFunc(delay, func() { c.post(c.cmds, c.restart) })
}

// onEnd runs on the loop when the source run ended.
func (c *Controller) onEnd() {
	c.running = false
	if id, dropped := c.utterances.Drop(); dropped {
		c.log.Debug().Str("utteranceId", id).Msg("Utterance ended without final result")
		c.emitPreview("")
	}

	switch c.phase {
	case PhaseStopping:
		c.setPhase(PhaseIdle)
		c.log.Info().Msg("Recognition source stopped")
	case PhaseRecording:
		if !c.opts.AutoRestart {
			c.state.Recording = false
			c.setPhase(PhaseIdle)
			c.log.Info().Msg("Recognition source ended, recording stopped")
			return
		}
		if c.gotResults {
			c.backoff.Reset()
		}
		c.setPhase(PhaseRestarting)
		c.scheduleRestart(c.backoff.NextBackOff())
	case PhaseRestarting:
		// Start requested while stopping
		c.scheduleRestart(0)
	}
}

// onResult runs on the loop for every recognition event.
func (c *Controller) onResult(ev models.RecognitionEvent) {
	interims, finals := 0, 0
	for _, r := range ev.Results {
		if r.IsFinal {
			finals++
		} else {
			interims++
		}
	}
	c.metrics.RecordRecognitionEvent(interims, finals)
	c.gotResults = true

	if ev.HasFinal() {
		c.applyFinal(ev)
	}

	if text, ok := ev.LatestInterim(); ok {
		id := c.utterances.Interim()
		c.emitPreview(text)
		c.publishInterim(id, text)
	}
}

func (c *Controller) applyFinal(ev models.RecognitionEvent) {
	id := c.utterances.Final()
	received := ev.ReceivedAt
	if received.IsZero() || received.After(time.Now()) {
		received = time.Now()
	}
	step := c.reducer.Apply(&c.state.LastTranscript, ev)
	if step.Kind == dictation.KindNone {
		return
	}

	c.metrics.RecordReduction(step.Kind.String(), step.Command, time.Since(received).Seconds())
	c.metrics.SetBufferBytes(len(c.surface.Read()))
	c.emitPreview("")

	c.log.Debug().
		Str("utteranceId", id).
		Str("kind", step.Kind.String()).
		Str("command", step.Command).
		Str("transcript", step.Transcript).
		Msg("Final transcript applied")

	frag := models.TranscriptFragment{
		EventType:   models.EventTypeFragment,
		SessionID:   c.id,
		UtteranceID: id,
		Timestamp:   time.Now().UnixMilli(),
		Transcript:  step.Transcript,
		Kind:        step.Kind.String(),
		Command:     step.Command,
		Fragment:    step.Fragment,
		Confidence:  step.Confidence,
	}
	if err := c.publisher.PublishFragment(c.ctx, frag); err != nil {
		c.log.Warn().Err(err).Str("utteranceId", id).Msg("Failed to publish fragment")
	}
}

func (c *Controller) publishInterim(id, text string) {
	ev := models.TranscriptInterim{
		EventType:   models.EventTypeInterim,
		SessionID:   c.id,
		UtteranceID: id,
		Timestamp:   time.Now().UnixMilli(),
		Text:        text,
	}
	if err := c.publisher.PublishInterim(c.ctx, ev); err != nil {
		c.log.Warn().Err(err).Str("utteranceId", id).Msg("Failed to publish interim")
	}
}

// onError runs on the loop for recognition errors.
func (c *Controller) onError(err error) {
	errType := "stream"
	if errors.Is(err, schema.ErrInvalidEvent) {
		errType = "invalid_event"
	}
	c.metrics.RecordSourceError(c.source.Name(), errType)
	c.log.Warn().Err(err).Str("errorType", errType).Msg("Recognition error")
}

func (c *Controller) setPhase(next Phase) {
	p, err := c.phase.transition(next)
	if err != nil {
		c.log.Error().Err(err).Msg("Rejected phase transition")
		return
	}
	if p == c.phase {
		return
	}
	c.log.Debug().Str("from", c.phase.String()).Str("to", p.String()).Msg("Phase changed")
	c.phase = p
	c.metrics.SetRecording(c.state.Recording)
	if c.preview != nil {
		c.preview(display.Update{Type: display.UpdateStatus, Text: p.String()})
	}
}

func (c *Controller) emitPreview(text string) {
	if c.preview != nil {
		c.preview(display.Update{Type: display.UpdateInterim, Text: text})
	}
}

// sourceHandler adapts stt.Handler callbacks onto the loop.
type sourceHandler struct {
	c *Controller
}

func (h *sourceHandler) OnResult(ev models.RecognitionEvent) {
	h.c.post(h.c.events, func() { h.c.onResult(ev) })
}

func (h *sourceHandler) OnError(err error) {
	h.c.post(h.c.events, func() { h.c.onError(err) })
}

func (h *sourceHandler) OnEnd() {
	h.c.post(h.c.events, h.c.onEnd)
}

type nopPublisher struct{}

func (nopPublisher) PublishInterim(context.Context, models.TranscriptInterim) error   { return nil }
func (nopPublisher) PublishFragment(context.Context, models.TranscriptFragment) error { return nil }
