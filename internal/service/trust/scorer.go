// Package trust scores signal credibility from severity and community votes
// and drives the signal lifecycle. All scores are recomputed from vote counts,
// never adjusted incrementally, so removing a vote restores the exact prior state.
package trust

import (
	"math"

	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// MaxSeverity is the upper bound of the severity scale.
const MaxSeverity = 5

// penaltySource converts abuse flags into a trust multiplier in [0,1].
type penaltySource interface {
	Multiplier(flags []domain.AbuseFlag) float64
}

// Scorer computes trust and confidence scores.
type Scorer struct {
	cfg       config.TrustConfig
	penalties penaltySource
}

// NewScorer creates a Scorer. penalties may be nil, in which case abuse
// flags do not affect trust.
func NewScorer(cfg config.TrustConfig, penalties penaltySource) *Scorer {
	return &Scorer{cfg: cfg, penalties: penalties}
}

// SeverityWeight maps severity 1..5 to (0,1].
//
//	sw = severity / 5
func SeverityWeight(severity int) float64 {
	return clamp01(float64(severity) / MaxSeverity)
}

// Prior is the severity-derived trust before any vote. Severe reports start
// neutral; milder ones slightly above it.
//
//	prior = neutral + bonus * (1 - sw)
func (s *Scorer) Prior(severity int) float64 {
	return clamp01(s.cfg.NeutralTrust + s.cfg.LowSeverityBonus*(1-SeverityWeight(severity)))
}

// ScoreForNewSignal returns the initial (trust, confidence) pair.
func (s *Scorer) ScoreForNewSignal(severity int) (float64, float64) {
	return s.Prior(severity), 0
}

// Confidence grows linearly with vote count and saturates.
//
//	confidence = min(1, total / saturation)
func (s *Scorer) Confidence(total int) float64 {
	return clamp01(float64(total) / float64(s.cfg.ConfidenceSaturation))
}

// ConfidenceLabel grades a vote count.
func (s *Scorer) ConfidenceLabel(total int) domain.ConfidenceLabel {
	switch {
	case total >= s.cfg.ConfidenceSaturation:
		return domain.ConfidenceHigh
	case total >= s.cfg.MediumConfidenceAt:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// Trust blends the prior with the observed ratio, shifting weight toward
// votes as their number grows, then applies the abuse multiplier.
//
//	w     = total / (total + k)
//	trust = (prior * (1 - w) + ratio * w) * multiplier
func (s *Scorer) Trust(severity, trueVotes, falseVotes int, flags []domain.AbuseFlag) float64 {
	prior := s.Prior(severity)
	total := trueVotes + falseVotes

	score := prior
	if total > 0 {
		w := float64(total) / (float64(total) + s.cfg.PriorStrength)
		ratio := float64(trueVotes) / float64(total)
		score = prior*(1-w) + ratio*w
	}

	if s.penalties != nil && len(flags) > 0 {
		score *= s.penalties.Multiplier(flags)
	}
	return clamp01(score)
}

// Recompute derives every score field of sig from its vote counts.
func (s *Scorer) Recompute(sig domain.Signal) domain.Signal {
	sig.SeverityWeight = SeverityWeight(sig.Severity)
	sig.TrustScore = s.Trust(sig.Severity, sig.TrueVotes, sig.FalseVotes, sig.AbuseFlags)
	sig.ConfidenceScore = s.Confidence(sig.TotalVotes())
	return sig
}

// RecomputeFromVotes resets the counters from the full vote set and recomputes.
func (s *Scorer) RecomputeFromVotes(sig domain.Signal, votes []domain.Vote) domain.Signal {
	sig.TrueVotes, sig.FalseVotes = 0, 0
	for _, v := range votes {
		if v.IsTrue {
			sig.TrueVotes++
		} else {
			sig.FalseVotes++
		}
	}
	return s.Recompute(sig)
}

// ApplyVote returns sig with one more vote applied.
func (s *Scorer) ApplyVote(sig domain.Signal, isTrue bool) domain.Signal {
	if isTrue {
		sig.TrueVotes++
	} else {
		sig.FalseVotes++
	}
	return s.Recompute(sig)
}

// RevertVote returns sig as if prior had never been cast.
func (s *Scorer) RevertVote(sig domain.Signal, prior domain.Vote) domain.Signal {
	if prior.IsTrue {
		sig.TrueVotes = max(0, sig.TrueVotes-1)
	} else {
		sig.FalseVotes = max(0, sig.FalseVotes-1)
	}
	return s.Recompute(sig)
}

// Summary is the public vote summary for a signal.
type Summary struct {
	TrueVotes       int
	FalseVotes      int
	TotalVotes      int
	TrustRatio      float64
	TrustScore      float64
	ConfidenceScore float64
	ConfidenceLabel domain.ConfidenceLabel
}

// Summary returns the vote summary. TrustRatio is 0.5 when nobody voted.
func (s *Scorer) Summary(sig domain.Signal) Summary {
	total := sig.TotalVotes()
	ratio := 0.5
	if total > 0 {
		ratio = float64(sig.TrueVotes) / float64(total)
	}
	return Summary{
		TrueVotes:       sig.TrueVotes,
		FalseVotes:      sig.FalseVotes,
		TotalVotes:      total,
		TrustRatio:      ratio,
		TrustScore:      sig.TrustScore,
		ConfidenceScore: sig.ConfidenceScore,
		ConfidenceLabel: s.ConfidenceLabel(total),
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
