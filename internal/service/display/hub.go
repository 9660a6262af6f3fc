package display

import (
	"sync"

	"github.com/rs/zerolog"

	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/observability/metrics"
)

// DefaultSubscriberBuffer is the number of updates queued per subscriber
// before it is considered too slow and dropped.
const DefaultSubscriberBuffer = 32

// Subscription receives updates from a Hub until cancelled or dropped.
type Subscription struct {
	C <-chan Update

	ch   chan Update
	hub  *Hub
	once sync.Once
}

// Cancel unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
}

// Hub fans display updates out to viewers (websocket clients, gRPC watchers).
// Publishing never blocks: a subscriber whose queue is full is dropped.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	last    Update
	hasLast bool
	bufSize int
	closed  bool
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub with the given per-subscriber queue size.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
		log:     logging.WithComponent("display-hub"),
		metrics: metrics.DefaultMetrics,
	}
}

// Subscribe registers a new viewer. The latest buffer snapshot, if any,
// is queued immediately so the viewer starts in sync.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Update, h.bufSize)
	s := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(ch) })
		return s
	}
	if h.hasLast {
		ch <- h.last
	}
	h.subs[s] = struct{}{}
	h.metrics.SetViewers(len(h.subs))
	h.log.Debug().Int("viewers", len(h.subs)).Msg("Viewer subscribed")
	return s
}

// Publish delivers an update to every subscriber.
// Buffer snapshots (scroll, clear) are remembered for late subscribers.
func (h *Hub) Publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if u.Type == UpdateScroll || u.Type == UpdateClear {
		h.last = u
		h.hasLast = true
	}
	for s := range h.subs {
		select {
		case s.ch <- u:
		default:
			h.log.Warn().Msg("Viewer too slow, dropping subscription")
			h.dropLocked(s)
		}
	}
}

// Observer adapts the hub to a Buffer observer.
func (h *Hub) Observer() Observer {
	return h.Publish
}

// Notice publishes a user-visible notification to all viewers.
func (h *Hub) Notice(message string) {
	h.Publish(Update{Type: UpdateNotice, Text: message})
}

// Viewers returns the number of active subscribers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops all subscribers. Further publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.dropLocked(s)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

func (h *Hub) dropLocked(s *Subscription) {
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		h.metrics.SetViewers(len(h.subs))
	}
	s.once.Do(func() { close(s.ch) })
}
