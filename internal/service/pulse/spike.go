package pulse

import (
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

var spikeNamespace = uuid.MustParse("6f1c2f0e-3b0a-4b8e-9d43-5a0c1f3e7b21")

// DetectSpike reports a burst when at least SpikeCount active signals of the
// tile were created within SpikeWindow before now. The returned spike is a
// new detection; pass it through ContinueSpike to carry the identity of a
// burst that was already reported.
func (a *Aggregator) DetectSpike(tileKey string, signals []domain.Signal, now time.Time) *domain.Spike {
	cutoff := now.Add(-a.cfg.SpikeWindow)

	var recent []domain.Signal
	for _, s := range a.activeIn(tileKey, signals, now) {
		if s.CreatedAt.After(cutoff) && !s.CreatedAt.After(now) {
			recent = append(recent, s)
		}
	}
	if len(recent) < a.cfg.SpikeCount || len(recent) == 0 {
		return nil
	}

	first, last := recent[0].CreatedAt, recent[0].CreatedAt
	var types []domain.SignalType
	for _, s := range recent {
		if s.CreatedAt.Before(first) {
			first = s.CreatedAt
		}
		if s.CreatedAt.After(last) {
			last = s.CreatedAt
		}
		if !slices.Contains(types, s.Type) {
			types = append(types, s.Type)
		}
	}
	slices.Sort(types)

	saturation := max(1, a.cfg.SpikeSaturation)
	return &domain.Spike{
		ID:            uuid.NewSHA1(spikeNamespace, []byte(tileKey+"|"+strconv.FormatInt(last.UnixNano(), 10))),
		TileKey:       tileKey,
		Centroid:      a.Centroid(tileKey),
		ReportCount:   len(recent),
		Intensity:     clamp01(float64(len(recent)) / float64(saturation)),
		SignalTypes:   types,
		DetectedAt:    last,
		FirstReportAt: first,
		LastReportAt:  last,
	}
}

// ContinueSpike links cur to the previously reported spike prev of the same
// tile. When the reports in cur's window overlap prev's, the burst is the
// same: cur takes prev's id and first detection time and fresh is false.
// Otherwise cur starts a new burst.
func (a *Aggregator) ContinueSpike(prev, cur *domain.Spike) (sp *domain.Spike, fresh bool) {
	if cur == nil {
		return nil, false
	}
	if prev == nil || prev.TileKey != cur.TileKey || cur.FirstReportAt.After(lastReport(prev)) {
		return cur, true
	}
	cur.ID = prev.ID
	cur.DetectedAt = prev.DetectedAt
	return cur, false
}

// SpikeActive reports whether the newest report of a spike is still within
// the window at now.
func (a *Aggregator) SpikeActive(sp *domain.Spike, now time.Time) bool {
	return sp != nil && now.Sub(lastReport(sp)) < a.cfg.SpikeWindow
}

func lastReport(sp *domain.Spike) time.Time {
	if sp.LastReportAt.After(sp.DetectedAt) {
		return sp.LastReportAt
	}
	return sp.DetectedAt
}
