// Package broadcast fans run events out to in-process subscribers.
//
// Subscribers pick a topic: an execution id to follow a single run, or
// AllTopics to receive every run's events. Delivery is best-effort; a
// subscriber whose buffer is full misses the event and nobody else is
// affected. There is no replay for late subscribers.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/meikuraledutech/flow"
)

// AllTopics subscribes to the events of every run.
const AllTopics = "*"

// DefaultBuffer is the per-subscriber queue length used when Subscribe gets 0.
const DefaultBuffer = 64

// Hub is a topic-keyed publish/subscribe fan-out. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
	logger *slog.Logger
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscription is one observer's queue.
type Subscription struct {
	hub     *Hub
	topic   string
	ch      chan flow.Event
	dropped atomic.Int64
}

// Subscribe registers a new observer of topic. Subscribing to a closed hub
// returns an already-closed subscription.
func (h *Hub) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{hub: h, topic: topic, ch: make(chan flow.Event, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
	return s
}

// Publish delivers ev to the subscribers of topic and of AllTopics without
// blocking.
func (h *Hub) Publish(topic string, ev flow.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(h.topics[topic], ev)
	if topic != AllTopics {
		h.deliver(h.topics[AllTopics], ev)
	}
}

func (h *Hub) deliver(subs map[*Subscription]struct{}, ev flow.Event) {
	for s := range subs {
		select {
		case s.ch <- ev:
		default:
			n := s.dropped.Add(1)
			h.logger.Warn("Dropped event for slow subscriber",
				"topic", s.topic, "executionId", ev.ExecutionID, "kind", ev.Kind, "dropped", n)
		}
	}
}

// Subscribers returns how many observers are registered on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close closes every subscription. Later publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for topic, subs := range h.topics {
		for s := range subs {
			close(s.ch)
		}
		delete(h.topics, topic)
	}
}

// Events is closed once the subscription or its hub is closed.
func (s *Subscription) Events() <-chan flow.Event { return s.ch }

// Topic returns the topic the subscription listens on.
func (s *Subscription) Topic() string { return s.topic }

// Dropped counts the events this subscriber missed because its queue was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[s.topic]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, s.topic)
	}
	close(s.ch)
}
