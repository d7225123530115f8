// Package pulse aggregates active signals into geohash tiles and keeps a
// versioned, read-consistent projection of those tiles for synchronization.
package pulse

import (
	"bytes"
	"slices"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// Aggregator computes tile state from signals. It holds no state besides its
// configuration: every result is a pure function of (signals, now).
type Aggregator struct {
	cfg config.PulseConfig
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg config.PulseConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// OnSignalChanged returns the tiles affected by a change to sig. A signal
// belongs to exactly one tile.
func (a *Aggregator) OnSignalChanged(sig domain.Signal) []string {
	if sig.TileKey != "" {
		return []string{sig.TileKey}
	}
	return []string{a.TileKey(sig.Location)}
}

// Decay attenuates a signal's weight by age.
//
//	decay(age) = max(floor, 1 - (1 - floor) * age / window)
func (a *Aggregator) Decay(sig domain.Signal, now time.Time) float64 {
	age := now.Sub(sig.CreatedAt)
	if age <= 0 {
		return 1
	}
	if a.cfg.DecayWindow <= 0 || age >= a.cfg.DecayWindow {
		return a.cfg.DecayFloor
	}
	frac := float64(age) / float64(a.cfg.DecayWindow)
	return max(a.cfg.DecayFloor, 1-(1-a.cfg.DecayFloor)*frac)
}

// Contribution is severity × trust × decay for one signal.
func (a *Aggregator) Contribution(sig domain.Signal, now time.Time) float64 {
	return float64(sig.Severity) * sig.TrustScore * a.Decay(sig, now)
}

// Compute derives the tile for tileKey from signals at now. Inactive signals
// and signals of other tiles are ignored. ok is false when no active signal
// remains, meaning the tile should be removed.
func (a *Aggregator) Compute(tileKey string, signals []domain.Signal, now time.Time) (tile domain.PulseTile, ok bool) {
	active := a.activeIn(tileKey, signals, now)
	if len(active) == 0 {
		return domain.PulseTile{}, false
	}

	var (
		total         float64
		corroborating int
		lastUpdated   time.Time
		byType        = make(map[domain.SignalType]float64)
		latestByType  = make(map[domain.SignalType]time.Time)
	)
	for _, s := range active {
		c := a.Contribution(s, now)
		total += c
		byType[s.Type] += c
		if s.CreatedAt.After(latestByType[s.Type]) {
			latestByType[s.Type] = s.CreatedAt
		}
		if s.TrustScore >= a.cfg.CorroborationTrust {
			corroborating++
		}
		if ts := lastActivity(s); ts.After(lastUpdated) {
			lastUpdated = ts
		}
	}

	tile = domain.PulseTile{
		TileKey:        tileKey,
		Centroid:       a.Centroid(tileKey),
		RadiusMeters:   a.cfg.RadiusMeters,
		Intensity:      clamp01(total / a.cfg.Saturation),
		Confidence:     confidenceLabel(len(active), corroborating),
		DominantReason: dominantReason(byType, latestByType),
		SignalCount:    len(active),
		LastUpdated:    lastUpdated,
	}
	return tile, true
}

// activeIn returns the active signals of the tile sorted by id, so that
// floating-point sums do not depend on input order.
func (a *Aggregator) activeIn(tileKey string, signals []domain.Signal, now time.Time) []domain.Signal {
	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if !s.IsActive(now) {
			continue
		}
		if a.OnSignalChanged(s)[0] != tileKey {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y domain.Signal) int {
		return bytes.Compare(x.ID[:], y.ID[:])
	})
	return out
}

// confidenceLabel grades a tile by how many signals back each other:
// HIGH with three or more trusted signals, MEDIUM with any corroboration,
// LOW for a lone untrusted signal.
func confidenceLabel(count, corroborating int) domain.ConfidenceLabel {
	switch {
	case corroborating >= 3:
		return domain.ConfidenceHigh
	case count >= 2 || corroborating >= 1:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func dominantReason(byType map[domain.SignalType]float64, latest map[domain.SignalType]time.Time) *domain.SignalType {
	types := make([]domain.SignalType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	slices.Sort(types)

	var best domain.SignalType
	found := false
	for _, t := range types {
		if !found {
			best, found = t, true
			continue
		}
		switch {
		case byType[t] > byType[best]:
			best = t
		case byType[t] == byType[best] && latest[t].After(latest[best]):
			best = t
		}
	}
	if !found {
		return nil
	}
	return &best
}

func lastActivity(s domain.Signal) time.Time {
	if s.LastActivityAt.After(s.CreatedAt) {
		return s.LastActivityAt
	}
	return s.CreatedAt
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
