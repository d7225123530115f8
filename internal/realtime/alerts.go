package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
)

const (
	alertLookback = 24 * time.Hour
	nightRisk     = 0.3
	spikeRisk     = 0.4
	nightStart    = 22
	nightEnd      = 6
)

type signalLister interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
}

// AlertEvaluator scores how risky a position is right now.
type AlertEvaluator struct {
	signals  signalLister
	cache    *pulse.Cache
	radiusKm float64
	metrics  *Metrics
	now      func() time.Time
}

// NewAlertEvaluator creates an AlertEvaluator looking at signals within
// radiusKm of the evaluated position.
func NewAlertEvaluator(signals signalLister, cache *pulse.Cache, radiusKm float64, m *Metrics) *AlertEvaluator {
	return &AlertEvaluator{signals: signals, cache: cache, radiusKm: radiusKm, metrics: m, now: time.Now}
}

// Evaluate combines location, night and spike risk for loc.
func (e *AlertEvaluator) Evaluate(ctx context.Context, loc domain.Location) (domain.LocationAlert, error) {
	now := e.now().UTC()
	after := now.Add(-alertLookback)

	nearby, err := e.signals.ListSignals(ctx, domain.SignalFilter{
		Area:         domain.Area{Center: loc, RadiusKm: e.radiusKm},
		CreatedAfter: &after,
		ActiveAt:     &now,
	})
	if err != nil {
		return domain.LocationAlert{}, fmt.Errorf("list nearby signals: %w", err)
	}

	alert := domain.LocationAlert{Location: loc, NearbySignals: len(nearby), EvaluatedAt: now}
	if len(nearby) > 0 {
		sum := 0
		for _, s := range nearby {
			sum += s.Severity
		}
		alert.LocationRisk = min(1, float64(sum)/float64(len(nearby))/5)
	}
	if h := now.Hour(); h >= nightStart || h < nightEnd {
		alert.NightRisk = nightRisk
	}
	if e.cache.ActiveSpike(e.cache.Aggregator().TileKey(loc), now) != nil {
		alert.SpikeRisk = spikeRisk
	}

	alert.RiskScore = min(1, alert.LocationRisk+alert.NightRisk+alert.SpikeRisk)
	switch {
	case alert.RiskScore >= 0.7:
		alert.Level = domain.RiskHigh
	case alert.RiskScore >= 0.4:
		alert.Level = domain.RiskMedium
	default:
		alert.Level = domain.RiskLow
	}
	e.metrics.alerts.WithLabelValues(string(alert.Level)).Inc()
	return alert, nil
}
