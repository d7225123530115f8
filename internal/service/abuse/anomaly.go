package abuse

import (
	"log/slog"
	"slices"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// ScoreAnomalies inspects an identity's recent submissions, oldest first, the
// last one being the submission under evaluation.
//
//   - improbable_velocity: distance / elapsed between the last two > MaxSpeedKmh
//   - high_frequency: at least BurstCount submissions within BurstWindow
//   - rapid_submission: less than RapidGap since the previous submission
func (g *Guard) ScoreAnomalies(identity string, recent []Submission) []domain.AbuseFlag {
	if len(recent) == 0 {
		return nil
	}
	last := recent[len(recent)-1]

	var flags []domain.AbuseFlag
	if len(recent) >= 2 {
		prev := recent[len(recent)-2]
		gap := last.At.Sub(prev.At)

		if gap < g.cfg.RapidGap {
			flags = append(flags, domain.AbuseFlagRapidSubmission)
		}

		dist := domain.DistanceKm(prev.Location, last.Location)
		hours := gap.Hours()
		switch {
		case hours <= 0 && dist > 0:
			flags = append(flags, domain.AbuseFlagImprobableVelocity)
		case hours > 0 && dist/hours > g.cfg.MaxSpeedKmh:
			flags = append(flags, domain.AbuseFlagImprobableVelocity)
		}
	}

	cutoff := last.At.Add(-g.cfg.BurstWindow)
	n := 0
	for _, s := range recent {
		if s.At.After(cutoff) {
			n++
		}
	}
	if n >= g.cfg.BurstCount {
		flags = append(flags, domain.AbuseFlagHighFrequency)
	}

	if len(flags) > 0 {
		slices.Sort(flags)
		g.log.Warn("submission flagged",
			slog.String("identity", identity),
			slog.Any("flags", flags),
		)
	}
	return flags
}

// Multiplier returns the trust multiplier for a set of flags: the product of
// each distinct flag's penalty. It never exceeds 1.
func (g *Guard) Multiplier(flags []domain.AbuseFlag) float64 {
	m := 1.0
	seen := make(map[domain.AbuseFlag]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true
		switch f {
		case domain.AbuseFlagImprobableVelocity:
			m *= g.cfg.VelocityPenalty
		case domain.AbuseFlagHighFrequency:
			m *= g.cfg.FrequencyPenalty
		case domain.AbuseFlagRapidSubmission:
			m *= g.cfg.RapidPenalty
		}
	}
	return max(0, min(1, m))
}
