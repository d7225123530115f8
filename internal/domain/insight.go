package domain

import "time"

// TimeRisk is the time-of-day component of area risk.
type TimeRisk struct {
	Hour       int
	IsNight    bool
	Multiplier float64
	Level      string
	At         time.Time
}

// Time risk levels.
const (
	TimeRiskElevated = "elevated"
	TimeRiskNormal   = "normal"
)

// RiskZone is a geohash cell graded by the trust-weighted severity of its
// recent reports.
type RiskZone struct {
	Key         string
	Centroid    Location
	RiskScore   float64
	SignalCount int
	LastReport  time.Time
}

// RiskZones splits graded cells into high and medium risk.
type RiskZones struct {
	High        []RiskZone
	Medium      []RiskZone
	EvaluatedAt time.Time
}

// Cluster is a group of recent reports sharing a fine geohash cell.
type Cluster struct {
	ID          string
	Centroid    Location
	SignalCount int
	SignalTypes []SignalType
	Intensity   float64
	DetectedAt  time.Time
}
