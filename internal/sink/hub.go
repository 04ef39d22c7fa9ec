package sink

import (
	"sync"

	"github.com/YaganovValera/quote-stream/internal/metrics"
)

// DefaultClientBuffer is the per-subscriber queue length.
const DefaultClientBuffer = 256

// Subscriber is one attached consumer of the hub.
type Subscriber struct {
	ch     chan Event
	closed bool
}

// C delivers events until the subscriber leaves.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Hub broadcasts events to attached subscribers. A slow subscriber loses
// events; Emit never blocks.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Hub{subs: make(map[*Subscriber]struct{}), buffer: buffer}
}

// Join attaches a new subscriber.
func (h *Hub) Join() *Subscriber {
	s := &Subscriber{ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Leave detaches s and closes its channel. Calling it twice is safe.
func (h *Hub) Leave(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	delete(h.subs, s)
	s.closed = true
	close(s.ch)
}

// Len returns the number of attached subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Emit implements LogSink.
func (h *Hub) Emit(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			metrics.SinkDrops.WithLabelValues("hub").Inc()
		}
	}
}

// Close detaches every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		s.closed = true
		close(s.ch)
	}
}
