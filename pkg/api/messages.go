package api

import (
	"encoding/json"
	"time"
)

// Topic groups push events. A new connection is subscribed to all topics.
type Topic string

const (
	TopicPulseUpdates  Topic = "pulse_updates"
	TopicReportUpdates Topic = "report_updates"
	TopicAlerts        Topic = "alerts"
)

// AllTopics lists every topic in a stable order.
var AllTopics = []Topic{TopicPulseUpdates, TopicReportUpdates, TopicAlerts}

// IsValid reports whether t is a known topic.
func (t Topic) IsValid() bool {
	switch t {
	case TopicPulseUpdates, TopicReportUpdates, TopicAlerts:
		return true
	}
	return false
}

// Server-pushed event types.
const (
	EventNewReport     = "new_report"
	EventPulseUpdate   = "pulse_update"
	EventSpikeDetected = "spike_detected"
	EventLocationAlert = "location_alert"
	EventVoteCast      = "vote_cast"
	EventReportDeleted = "report_deleted"
)

// IsEventType reports whether typ is a server-pushed event type.
func IsEventType(typ string) bool {
	switch typ {
	case EventNewReport, EventPulseUpdate, EventSpikeDetected, EventLocationAlert, EventVoteCast, EventReportDeleted:
		return true
	}
	return false
}

// Control message types exchanged on the push connection.
const (
	MsgAuth           = "auth"
	MsgSubscribe      = "subscribe"
	MsgUnsubscribe    = "unsubscribe"
	MsgLocationUpdate = "location_update"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgConnected      = "connected"
	MsgAuthOK         = "auth_ok"
	MsgSubscribed     = "subscribed"
	MsgError          = "error"
)

// ClientMessage is any message a client sends on the push connection.
// Fields not used by Type are ignored.
type ClientMessage struct {
	Type       string   `json:"type"`
	Token      string   `json:"token,omitempty"`
	DeviceHash string   `json:"device_hash,omitempty"`
	Topics     []Topic  `json:"topics,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	RadiusKm   *float64 `json:"radius,omitempty"`
}

// ServerMessage is the envelope of everything the server pushes. Version is
// the sync version the event belongs to, zero for control messages.
type ServerMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Version   uint64          `json:"version,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewServerMessage encodes data into an envelope.
func NewServerMessage(typ string, version uint64, data any, now time.Time) (ServerMessage, error) {
	msg := ServerMessage{Type: typ, Version: version, Timestamp: now}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ServerMessage{}, err
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the envelope payload into v.
func (m ServerMessage) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// ConnectedData is sent once after the upgrade.
type ConnectedData struct {
	ConnectionID string    `json:"connection_id"`
	Topics       []Topic   `json:"topics"`
	Version      uint64    `json:"version"`
	Heartbeat    float64   `json:"heartbeat_seconds"`
	ServerTime   time.Time `json:"server_time"`
}

// AuthOKData acknowledges an auth message.
type AuthOKData struct {
	Authenticated bool `json:"authenticated"`
}

// SubscribedData reports the connection's current topics and area.
type SubscribedData struct {
	Topics    []Topic  `json:"topics"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RadiusKm  float64  `json:"radius"`
}

// PongData answers a ping.
type PongData struct {
	ServerTime time.Time `json:"server_time"`
	Version    uint64    `json:"version"`
}

// ErrorData reports a rejected client message.
type ErrorData struct {
	Message string `json:"message"`
}

// PulseUpdateData carries the tiles changed by one committed write.
type PulseUpdateData struct {
	Tiles        []PulseTile `json:"tiles"`
	RemovedTiles []string    `json:"removed_tiles"`
	Version      uint64      `json:"version"`
}

// VoteCastData carries the vote state after a vote was cast or removed.
type VoteCastData struct {
	Summary VoteSummary `json:"summary"`
	Removed bool        `json:"removed,omitempty"`
}

// ReportDeletedData tells push clients to drop a signal.
type ReportDeletedData struct {
	SignalID string `json:"signal_id"`
	TileID   string `json:"tile_id"`
	Version  uint64 `json:"version"`
}
