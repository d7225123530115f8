// Package wire converts domain values into the pkg/api schema.
package wire

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// Report converts a signal. label is the vote-count confidence label.
func Report(sig domain.Signal, label domain.ConfidenceLabel) api.Report {
	return api.Report{
		ID:              sig.ID,
		SignalType:      string(sig.Type),
		Severity:        sig.Severity,
		Latitude:        sig.Location.Lat,
		Longitude:       sig.Location.Lng,
		TileID:          sig.TileKey,
		Status:          string(sig.Status),
		TrueVotes:       sig.TrueVotes,
		FalseVotes:      sig.FalseVotes,
		TrustScore:      sig.TrustScore,
		ConfidenceScore: sig.ConfidenceScore,
		Confidence:      string(label),
		CreatedAt:       sig.CreatedAt,
		ExpiresAt:       sig.ExpiresAt,
		Version:         sig.Version,
	}
}

// Reports converts signals using labeler for each confidence label.
func Reports(sigs []domain.Signal, labeler func(total int) domain.ConfidenceLabel) []api.Report {
	out := make([]api.Report, len(sigs))
	for i, sig := range sigs {
		out[i] = Report(sig, labeler(sig.TotalVotes()))
	}
	return out
}

// Tile converts a pulse tile.
func Tile(t domain.PulseTile) api.PulseTile {
	out := api.PulseTile{
		TileID:      t.TileKey,
		Latitude:    t.Centroid.Lat,
		Longitude:   t.Centroid.Lng,
		Radius:      t.RadiusMeters,
		Intensity:   t.Intensity,
		Confidence:  string(t.Confidence),
		SignalCount: t.SignalCount,
		LastUpdated: t.LastUpdated,
		Version:     t.Version,
	}
	if t.DominantReason != nil {
		r := string(*t.DominantReason)
		out.DominantReason = &r
	}
	return out
}

// Tiles converts a tile list, never returning nil.
func Tiles(tiles []domain.PulseTile) []api.PulseTile {
	out := make([]api.PulseTile, len(tiles))
	for i, t := range tiles {
		out[i] = Tile(t)
	}
	return out
}

// Spike converts a spike.
func Spike(sp domain.Spike) api.Spike {
	types := make([]string, len(sp.SignalTypes))
	for i, t := range sp.SignalTypes {
		types[i] = string(t)
	}
	return api.Spike{
		ID:          sp.ID,
		TileID:      sp.TileKey,
		Latitude:    sp.Centroid.Lat,
		Longitude:   sp.Centroid.Lng,
		ReportCount: sp.ReportCount,
		Intensity:   sp.Intensity,
		SignalTypes: types,
		DetectedAt:  sp.DetectedAt,
		Version:     sp.Version,
		Message:     fmt.Sprintf("Safety spike detected: %d reports nearby", sp.ReportCount),
	}
}

// Spikes converts a spike list, never returning nil.
func Spikes(spikes []domain.Spike) []api.Spike {
	out := make([]api.Spike, len(spikes))
	for i, sp := range spikes {
		out[i] = Spike(sp)
	}
	return out
}

// Alert converts a location alert and attaches the advice message.
func Alert(a domain.LocationAlert) api.LocationAlert {
	return api.LocationAlert{
		Latitude:      a.Location.Lat,
		Longitude:     a.Location.Lng,
		RiskScore:     a.RiskScore,
		AlertLevel:    string(a.Level),
		Message:       alertMessage(a),
		LocationRisk:  a.LocationRisk,
		TimeRisk:      a.NightRisk,
		SpikeRisk:     a.SpikeRisk,
		NearbySignals: a.NearbySignals,
		EvaluatedAt:   a.EvaluatedAt,
	}
}

func alertMessage(a domain.LocationAlert) string {
	switch {
	case a.Level == domain.RiskHigh:
		return "This area has elevated safety concerns. Exercise caution."
	case a.Level == domain.RiskMedium && a.NightRisk > 0:
		return "Nighttime in this area. Stay alert."
	case a.Level == domain.RiskMedium:
		return "Some safety reports nearby. Stay aware of your surroundings."
	case a.SpikeRisk > 0:
		return "Unusual activity reported nearby."
	default:
		return "No significant safety concerns reported nearby."
	}
}

// Summary converts a trust summary.
func Summary(signalID uuid.UUID, s trust.Summary, status domain.SignalStatus, version uint64) api.VoteSummary {
	return api.VoteSummary{
		SignalID:        signalID,
		TrueVotes:       s.TrueVotes,
		FalseVotes:      s.FalseVotes,
		TotalVotes:      s.TotalVotes,
		TrustRatio:      s.TrustRatio,
		TrustScore:      s.TrustScore,
		ConfidenceScore: s.ConfidenceScore,
		Confidence:      string(s.ConfidenceLabel),
		Status:          string(status),
		Version:         version,
	}
}

// FieldErrors converts validation field errors.
func FieldErrors(errs []domain.FieldError) []api.FieldError {
	out := make([]api.FieldError, len(errs))
	for i, e := range errs {
		out[i] = api.FieldError{Field: e.Field, Message: e.Message}
	}
	return out
}

// TimeRisk converts a time-of-day risk reading.
func TimeRisk(r domain.TimeRisk) api.TimeRisk {
	return api.TimeRisk{Hour: r.Hour, IsNight: r.IsNight, Multiplier: r.Multiplier, RiskLevel: r.Level, ServerTime: r.At}
}

// RiskZones converts graded zones, never returning nil lists.
func RiskZones(z domain.RiskZones) api.RiskZones {
	return api.RiskZones{HighRisk: zones(z.High), MediumRisk: zones(z.Medium), EvaluatedAt: z.EvaluatedAt}
}

func zones(in []domain.RiskZone) []api.RiskZone {
	out := make([]api.RiskZone, len(in))
	for i, z := range in {
		out[i] = api.RiskZone{
			ZoneID:      z.Key,
			Latitude:    z.Centroid.Lat,
			Longitude:   z.Centroid.Lng,
			RiskScore:   z.RiskScore,
			SignalCount: z.SignalCount,
			LastReport:  z.LastReport,
		}
	}
	return out
}

// Clusters converts report clusters.
func Clusters(in []domain.Cluster) api.ClusterList {
	out := make([]api.Cluster, len(in))
	for i, c := range in {
		types := make([]string, len(c.SignalTypes))
		for j, t := range c.SignalTypes {
			types[j] = string(t)
		}
		out[i] = api.Cluster{
			ClusterID:   c.ID,
			Latitude:    c.Centroid.Lat,
			Longitude:   c.Centroid.Lng,
			SignalCount: c.SignalCount,
			SignalTypes: types,
			Intensity:   c.Intensity,
			DetectedAt:  c.DetectedAt,
		}
	}
	return api.ClusterList{Clusters: out, Count: len(out)}
}
