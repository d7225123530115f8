// Package realtime fans committed changes out to push subscribers and
// serves the equivalent pull interface for polling clients.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// Event is one encoded push message plus the routing data the hub needs.
type Event struct {
	Type    string
	Topic   api.Topic
	Version uint64
	// Locations scope the event to subscribers whose area contains at least
	// one of them. Empty means every subscriber of Topic.
	Locations []domain.Location
	// SlackKm widens subscriber areas, so a tile whose centroid lies just
	// outside an area but overlaps it still matches.
	SlackKm float64

	msg     api.ServerMessage
	payload []byte
}

// NewEvent encodes data into a server message envelope once, so every
// subscriber receives the same bytes.
func NewEvent(typ string, topic api.Topic, version uint64, data any, now time.Time, locs ...domain.Location) (Event, error) {
	msg, err := api.NewServerMessage(typ, version, data, now)
	if err != nil {
		return Event{}, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Topic: topic, Version: version, Locations: locs, msg: msg, payload: payload}, nil
}

// Payload returns the encoded envelope.
func (e Event) Payload() []byte { return e.payload }

// Message returns the envelope before encoding.
func (e Event) Message() api.ServerMessage { return e.msg }

func (e Event) matches(area domain.Area) bool {
	if len(e.Locations) == 0 || area.IsGlobal() {
		return true
	}
	for _, loc := range e.Locations {
		if domain.DistanceKm(area.Center, loc) <= area.RadiusKm+e.SlackKm {
			return true
		}
	}
	return false
}
