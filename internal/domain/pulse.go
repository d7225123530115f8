package domain

import (
	"time"

	"github.com/google/uuid"
)

// PulseTile is the aggregate over active signals in one geohash cell.
type PulseTile struct {
	TileKey        string
	Centroid       Location
	RadiusMeters   float64
	Intensity      float64
	Confidence     ConfidenceLabel
	DominantReason *SignalType
	SignalCount    int
	LastUpdated    time.Time
	Version        uint64
}

// Spike is a burst of reports in one tile within a short window.
type Spike struct {
	ID          uuid.UUID
	TileKey     string
	Centroid    Location
	ReportCount int
	Intensity   float64
	SignalTypes []SignalType
	// DetectedAt is the first detection of the burst. It stays fixed while
	// the burst continues.
	DetectedAt time.Time
	// FirstReportAt and LastReportAt bound the reports in the current window.
	FirstReportAt time.Time
	LastReportAt  time.Time
	Version       uint64
}

// RiskLevel grades a location alert.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// LocationAlert is the personalised risk assessment for a viewer position.
type LocationAlert struct {
	Location      Location
	RiskScore     float64
	Level         RiskLevel
	LocationRisk  float64
	NightRisk     float64
	SpikeRisk     float64
	NearbySignals int
	EvaluatedAt   time.Time
}

// TileRecord is the persisted form of the latest tile version. Removed
// records are tombstones kept so that a restarted server can still report
// the removal in deltas.
type TileRecord struct {
	Tile      PulseTile
	Removed   bool
	UpdatedAt time.Time
}
