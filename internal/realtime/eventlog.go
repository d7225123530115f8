package realtime

import (
	"sync"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// EventLog keeps the most recent broadcast envelopes in a ring buffer so
// that clients can inspect what was pushed lately. A nil *EventLog drops
// everything.
type EventLog struct {
	mu    sync.RWMutex
	ring  []api.ServerMessage
	next  int
	count int
}

// NewEventLog creates an EventLog holding up to size events.
func NewEventLog(size int) *EventLog {
	return &EventLog{ring: make([]api.ServerMessage, max(size, 1))}
}

// Append records msg, evicting the oldest entry when full.
func (l *EventLog) Append(msg api.ServerMessage) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.ring[l.next] = msg
	l.next = (l.next + 1) % len(l.ring)
	l.count = min(l.count+1, len(l.ring))
	l.mu.Unlock()
}

// Recent returns up to limit events, newest first. An empty typ matches
// every event type.
func (l *EventLog) Recent(limit int, typ string) []api.ServerMessage {
	out := []api.ServerMessage{}
	if l == nil {
		return out
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := 1; i <= l.count && len(out) < limit; i++ {
		msg := l.ring[(l.next-i+len(l.ring))%len(l.ring)]
		if typ == "" || msg.Type == typ {
			out = append(out, msg)
		}
	}
	return out
}
