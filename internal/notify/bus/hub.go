// Package bus fans change events out to in-process subscribers.
//
// Publish never blocks. Every subscriber owns a bounded buffer; when a slow
// subscriber's buffer is full the oldest pending event is dropped to make room.
// One subscriber falling behind never delays the others or the publisher.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"showcase/internal/notify/metrics"
	"showcase/internal/platform/logger"
	"showcase/internal/profile/models"
)

const defaultBuffer = 16

// Hub is the subscriber registry.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	buffer  int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: defaultBuffer,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber. Subscribing to a closed hub returns an
// already-closed subscription.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan models.ChangeEvent, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.closed = true
		close(s.ch)
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	h.metrics.SubscriberAdded()
	return s
}

// SubscribeFunc subscribes for the lifetime of ctx. The returned function
// unsubscribes early; calling it more than once is fine.
func (h *Hub) SubscribeFunc(ctx context.Context) (<-chan models.ChangeEvent, func()) {
	s := h.Subscribe()
	stop := context.AfterFunc(ctx, s.Close)
	return s.C(), func() {
		stop()
		s.Close()
	}
}

// Publish delivers event to every current subscriber.
func (h *Hub) Publish(event models.ChangeEvent) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if s.deliver(event) {
			h.metrics.IncrementDropped()
			h.logger.Debug("dropped oldest event for slow subscriber",
				"subscriber", s.id, "subject_id", event.SubjectID)
		}
	}
	h.metrics.IncrementPublished()
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.closeChannel()
		h.metrics.SubscriberRemoved()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	_, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		h.metrics.SubscriberRemoved()
	}
}

// Subscription is one subscriber's handle.
type Subscription struct {
	hub *Hub
	id  uint64
	ch  chan models.ChangeEvent

	// mu orders deliveries against close so nothing is sent on a closed channel.
	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

// C returns the event channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan models.ChangeEvent {
	return s.ch
}

// Dropped returns how many events this subscriber lost to overflow.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes and closes C. It is idempotent.
func (s *Subscription) Close() {
	if s.closeChannel() {
		s.hub.remove(s.id)
	}
}

func (s *Subscription) closeChannel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.ch)
	return true
}

// deliver enqueues event, evicting the oldest pending one when full. It
// reports whether an event was dropped.
func (s *Subscription) deliver(event models.ChangeEvent) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- event:
		return false
	default:
	}
	select {
	case <-s.ch:
		dropped = true
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
	return dropped
}
