// Package api is the JSON wire schema shared by the server and sync clients.
//
// Optional fields have documented defaults that decoding applies when the
// field is absent, so both sides agree without guessing:
//
//	trust_score  0.5     (DefaultTrustScore)
//	confidence   MEDIUM  (DefaultConfidence)
package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Defaults applied when a field is absent from a decoded payload.
const (
	DefaultTrustScore = 0.5
	DefaultConfidence = "MEDIUM"
)

// TimeWindow values accepted by the report listing.
const (
	TimeWindowHour  = "1h"
	TimeWindowDay   = "24h"
	TimeWindowWeek  = "7d"
	MaxRadiusKm     = 100.0
	DefaultRadiusKm = 10.0
)

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// SubmitReportRequest is the body of POST /api/v1/report.
type SubmitReportRequest struct {
	SignalType string            `json:"signal_type"`
	Severity   int               `json:"severity"`
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	Context    map[string]string `json:"context,omitempty"`
}

// SubmitReportResponse acknowledges a stored report.
type SubmitReportResponse struct {
	Message    string    `json:"message"`
	SignalID   uuid.UUID `json:"signal_id"`
	TrustScore float64   `json:"trust_score"`
	Confidence string    `json:"confidence"`
	Version    uint64    `json:"version"`
}

// Report is one signal as seen by clients. Coordinates are already blurred.
type Report struct {
	ID              uuid.UUID `json:"id"`
	SignalType      string    `json:"signal_type"`
	Severity        int       `json:"severity"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	TileID          string    `json:"tile_id,omitempty"`
	Status          string    `json:"status"`
	TrueVotes       int       `json:"true_votes"`
	FalseVotes      int       `json:"false_votes"`
	TrustScore      float64   `json:"trust_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	Confidence      string    `json:"confidence"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Version         uint64    `json:"version"`
}

// UnmarshalJSON applies DefaultTrustScore and DefaultConfidence.
func (r *Report) UnmarshalJSON(b []byte) error {
	type plain Report
	p := plain{TrustScore: DefaultTrustScore, Confidence: DefaultConfidence}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Report(p)
	return nil
}

// ReportList is the response of GET /api/v1/reports.
type ReportList struct {
	Reports []Report `json:"reports"`
	Count   int      `json:"count"`
}

// ---------------------------------------------------------------------------
// Votes
// ---------------------------------------------------------------------------

// VoteRequest is the body of POST /api/v1/reports/{id}/vote. IsTrue is
// required; a body without it is rejected rather than read as a false vote.
type VoteRequest struct {
	IsTrue *bool `json:"is_true"`
}

// NewVoteRequest returns a VoteRequest for isTrue.
func NewVoteRequest(isTrue bool) VoteRequest {
	return VoteRequest{IsTrue: &isTrue}
}

// VoteSummary is the vote state of one signal.
type VoteSummary struct {
	SignalID        uuid.UUID `json:"signal_id"`
	TrueVotes       int       `json:"true_votes"`
	FalseVotes      int       `json:"false_votes"`
	TotalVotes      int       `json:"total_votes"`
	TrustRatio      float64   `json:"trust_ratio"`
	TrustScore      float64   `json:"trust_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	Confidence      string    `json:"confidence"`
	Status          string    `json:"status,omitempty"`
	Version         uint64    `json:"version,omitempty"`
}

// UnmarshalJSON applies DefaultTrustScore and DefaultConfidence.
func (v *VoteSummary) UnmarshalJSON(b []byte) error {
	type plain VoteSummary
	p := plain{TrustScore: DefaultTrustScore, Confidence: DefaultConfidence, TrustRatio: 0.5}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*v = VoteSummary(p)
	return nil
}

// VoteCheck tells the caller whether and how they voted.
type VoteCheck struct {
	SignalID uuid.UUID  `json:"signal_id"`
	HasVoted bool       `json:"has_voted"`
	IsTrue   *bool      `json:"is_true,omitempty"`
	CastAt   *time.Time `json:"cast_at,omitempty"`
}

// DeleteRequest is the optional body of DELETE /api/v1/reports/{id}.
type DeleteRequest struct {
	Reason string `json:"reason,omitempty"`
}

// DeleteResponse acknowledges an owner deletion.
type DeleteResponse struct {
	SignalID     uuid.UUID `json:"signal_id"`
	Status       string    `json:"status"`
	VotesRemoved int       `json:"votes_removed"`
	Version      uint64    `json:"version"`
}

// ---------------------------------------------------------------------------
// Pulse
// ---------------------------------------------------------------------------

// PulseTile is one aggregated geohash cell.
type PulseTile struct {
	TileID         string    `json:"tile_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Radius         float64   `json:"radius"`
	Intensity      float64   `json:"intensity"`
	Confidence     string    `json:"confidence"`
	DominantReason *string   `json:"dominant_reason,omitempty"`
	SignalCount    int       `json:"signal_count"`
	LastUpdated    time.Time `json:"last_updated"`
	Version        uint64    `json:"version"`
}

// UnmarshalJSON applies DefaultConfidence.
func (t *PulseTile) UnmarshalJSON(b []byte) error {
	type plain PulseTile
	p := plain{Confidence: DefaultConfidence}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = PulseTile(p)
	return nil
}

// PulseResponse is the response of GET /api/v1/pulse.
type PulseResponse struct {
	Tiles      []PulseTile `json:"tiles"`
	Version    uint64      `json:"version"`
	ServerTime time.Time   `json:"server_time"`
}

// Spike is a burst of reports in one tile.
type Spike struct {
	ID          uuid.UUID `json:"id"`
	TileID      string    `json:"tile_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ReportCount int       `json:"report_count"`
	Intensity   float64   `json:"intensity"`
	SignalTypes []string  `json:"signal_types"`
	DetectedAt  time.Time `json:"detected_at"`
	Version     uint64    `json:"version"`
	Message     string    `json:"message,omitempty"`
}

// LocationAlert is the risk assessment pushed after a location_update.
type LocationAlert struct {
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	RiskScore     float64   `json:"risk_score"`
	AlertLevel    string    `json:"alert_level"`
	Message       string    `json:"message"`
	LocationRisk  float64   `json:"location_risk"`
	TimeRisk      float64   `json:"time_risk"`
	SpikeRisk     float64   `json:"spike_risk"`
	NearbySignals int       `json:"nearby_signals"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// PulseStats is the response of GET /api/v1/pulses/stats.
type PulseStats struct {
	TotalActive            int            `json:"total_active_pulses"`
	AverageIntensity       float64        `json:"average_intensity"`
	HighConfidenceCount    int            `json:"high_confidence_count"`
	ConfidenceDistribution map[string]int `json:"confidence_distribution"`
	ReasonDistribution     map[string]int `json:"reason_distribution"`
	Version                uint64         `json:"version"`
	ServerTime             time.Time      `json:"server_time"`
}

// ---------------------------------------------------------------------------
// Intelligence
// ---------------------------------------------------------------------------

// TimeRisk is the response of GET /api/v1/intelligence/time-risk.
type TimeRisk struct {
	Hour       int       `json:"hour"`
	IsNight    bool      `json:"is_night"`
	Multiplier float64   `json:"multiplier"`
	RiskLevel  string    `json:"risk_level"`
	ServerTime time.Time `json:"server_time"`
}

// RiskZone is one graded geohash cell.
type RiskZone struct {
	ZoneID      string    `json:"zone_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	RiskScore   float64   `json:"risk_score"`
	SignalCount int       `json:"signal_count"`
	LastReport  time.Time `json:"last_report"`
}

// RiskZones is the response of GET /api/v1/intelligence/risk-zones.
type RiskZones struct {
	HighRisk    []RiskZone `json:"high_risk_zones"`
	MediumRisk  []RiskZone `json:"medium_risk_zones"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}

// Cluster is a group of nearby recent reports.
type Cluster struct {
	ClusterID   string    `json:"cluster_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	SignalCount int       `json:"signal_count"`
	SignalTypes []string  `json:"signal_types"`
	Intensity   float64   `json:"intensity"`
	DetectedAt  time.Time `json:"detected_at"`
}

// ClusterList is the response of GET /api/v1/intelligence/clusters.
type ClusterList struct {
	Clusters []Cluster `json:"clusters"`
	Count    int       `json:"count"`
}

// ---------------------------------------------------------------------------
// Polling
// ---------------------------------------------------------------------------

// PollResponse is the response of GET /api/v1/realtime/updates. Applying it
// yields the same state as every push event up to Version.
type PollResponse struct {
	NewReports   []Report    `json:"new_reports"`
	PulseUpdates []PulseTile `json:"pulse_updates"`
	RemovedTiles []string    `json:"removed_tiles"`
	Spikes       []Spike     `json:"spikes"`
	Version      uint64      `json:"version"`
	Reset        bool        `json:"reset,omitempty"`
	ServerTime   time.Time   `json:"server_time"`
}

// PulseDelta is the response of GET /api/v1/realtime/pulse-delta. With
// Reset set, ChangedTiles is a full snapshot replacing local tiles.
type PulseDelta struct {
	ChangedTiles []PulseTile `json:"changed_tiles"`
	RemovedTiles []string    `json:"removed_tiles"`
	Version      uint64      `json:"version"`
	HasUpdates   bool        `json:"has_updates"`
	Reset        bool        `json:"reset,omitempty"`
}

// RealtimeStatus is the response of GET /api/v1/realtime/status.
type RealtimeStatus struct {
	Status      string         `json:"status"`
	Connections int            `json:"websocket_connections"`
	ByTopic     map[string]int `json:"topics"`
	Version     uint64         `json:"version"`
	ServerTime  time.Time      `json:"server_time"`
}

// RecentEvents is the response of GET /api/v1/realtime/events, newest first.
type RecentEvents struct {
	Events []ServerMessage `json:"events"`
	Count  int             `json:"count"`
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// FieldError is one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error             string       `json:"error"`
	Code              string       `json:"code,omitempty"`
	Fields            []FieldError `json:"fields,omitempty"`
	RetryAfterSeconds int          `json:"retry_after_seconds,omitempty"`
}
