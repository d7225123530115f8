package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// ErrQueueFull is returned by Deliver when a subscriber cannot keep up.
var ErrQueueFull = errors.New("subscriber queue full")

// Subscriber is a push connection. Deliver must not block: a subscriber
// that cannot accept a message returns an error and is dropped. Close must
// be idempotent.
type Subscriber interface {
	ID() string
	Deliver(payload []byte) error
	Close()
}

type subscription struct {
	sub    Subscriber
	area   domain.Area
	topics map[api.Topic]bool
}

func (s *subscription) topicList() []api.Topic {
	out := make([]api.Topic, 0, len(s.topics))
	for _, t := range api.AllTopics {
		if s.topics[t] {
			out = append(out, t)
		}
	}
	return out
}

// Hub routes events to push subscribers by topic and area.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics

	mu   sync.RWMutex
	subs map[string]*subscription
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, m *Metrics) *Hub {
	return &Hub{
		log:     logger.With("component", "realtime_hub"),
		metrics: m,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe registers sub for topics within area. Empty topics means all
// topics; a global area receives events from everywhere.
func (h *Hub) Subscribe(sub Subscriber, area domain.Area, topics []api.Topic) {
	s := &subscription{sub: sub, area: area, topics: make(map[api.Topic]bool)}
	if len(topics) == 0 {
		topics = api.AllTopics
	}
	for _, t := range topics {
		if t.IsValid() {
			s.topics[t] = true
		}
	}

	h.mu.Lock()
	prev := h.subs[sub.ID()]
	h.subs[sub.ID()] = s
	n := len(h.subs)
	h.mu.Unlock()

	if prev != nil && prev.sub != sub {
		prev.sub.Close()
	}
	h.metrics.connections.Set(float64(n))
}

// Unsubscribe removes and closes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		s.sub.Close()
		h.metrics.connections.Set(float64(n))
	}
}

// UpdateSubscriptionArea moves a subscriber to a new area.
func (h *Hub) UpdateSubscriptionArea(id string, area domain.Area) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[id]
	if !ok {
		return fmt.Errorf("subscriber %s: %w", id, domain.ErrNotFound)
	}
	s.area = area
	return nil
}

// UpdateTopics adds and removes topics and returns the resulting set.
func (h *Hub) UpdateTopics(id string, add, remove []api.Topic) ([]api.Topic, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %s: %w", id, domain.ErrNotFound)
	}
	for _, t := range add {
		if !t.IsValid() {
			return nil, domain.NewValidationError("topics", fmt.Sprintf("unknown topic %q", t))
		}
	}
	for _, t := range add {
		s.topics[t] = true
	}
	for _, t := range remove {
		delete(s.topics, t)
	}
	return s.topicList(), nil
}

// Subscription returns the topics and area of a subscriber.
func (h *Hub) Subscription(id string) ([]api.Topic, domain.Area, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.subs[id]
	if !ok {
		return nil, domain.Area{}, false
	}
	return s.topicList(), s.area, true
}

// Broadcast delivers ev to every matching subscriber without blocking.
// Subscribers whose Deliver fails are dropped.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		if s.topics[ev.Topic] && ev.matches(s.area) {
			targets = append(targets, s.sub)
		}
	}
	h.mu.RUnlock()

	h.metrics.broadcast.WithLabelValues(ev.Type).Inc()
	for _, sub := range targets {
		h.deliver(sub, ev)
	}
}

// Send delivers ev to one subscriber regardless of topic and area.
func (h *Hub) Send(id string, ev Event) bool {
	h.mu.RLock()
	s, ok := h.subs[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return h.deliver(s.sub, ev)
}

func (h *Hub) deliver(sub Subscriber, ev Event) bool {
	err := sub.Deliver(ev.payload)
	if err == nil {
		h.metrics.delivered.Inc()
		return true
	}

	reason := "error"
	if errors.Is(err, ErrQueueFull) {
		reason = "slow"
	}
	h.metrics.dropped.WithLabelValues(reason).Inc()
	h.log.Debug("dropping subscriber",
		slog.String("subscriber", sub.ID()),
		slog.String("event", ev.Type),
		slog.String("error", err.Error()),
	)
	h.remove(sub)
	return false
}

// remove drops sub only if it is still the registered subscriber for its id.
func (h *Hub) remove(sub Subscriber) {
	h.mu.Lock()
	s, ok := h.subs[sub.ID()]
	if ok && s.sub == sub {
		delete(h.subs, sub.ID())
	}
	n := len(h.subs)
	h.mu.Unlock()

	sub.Close()
	h.metrics.connections.Set(float64(n))
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CountByTopic returns subscriber counts per topic.
func (h *Hub) CountByTopic() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(api.AllTopics))
	for _, t := range api.AllTopics {
		out[string(t)] = 0
	}
	for _, s := range h.subs {
		for t := range s.topics {
			out[string(t)]++
		}
	}
	return out
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*subscription)
	h.mu.Unlock()

	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		subs[id].sub.Close()
	}
	h.metrics.connections.Set(0)
}
