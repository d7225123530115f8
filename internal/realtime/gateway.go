package realtime

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
	"github.com/heartmarshall/safety-pulse/internal/wire"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// snapshotReportLimit caps the reports returned with a full snapshot.
const snapshotReportLimit = 500

type signalReader interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
	ListChangedSignals(ctx context.Context, area domain.Area, r domain.VersionRange) ([]domain.Signal, error)
}

// Cursor is a poll position. Version takes precedence over Since; with
// neither set the poll returns a full snapshot.
type Cursor struct {
	Version *uint64
	Since   *time.Time
}

// Gateway serves the pull side of synchronization from the same versioned
// cache that feeds push events.
type Gateway struct {
	cache   *pulse.Cache
	signals signalReader
	labeler func(total int) domain.ConfidenceLabel
	metrics *Metrics
	group   singleflight.Group
	now     func() time.Time
}

// NewGateway creates a Gateway.
func NewGateway(cache *pulse.Cache, signals signalReader, labeler func(total int) domain.ConfidenceLabel, m *Metrics) *Gateway {
	return &Gateway{
		cache:   cache,
		signals: signals,
		labeler: labeler,
		metrics: m,
		now:     time.Now,
	}
}

// Version returns the visible sync version.
func (g *Gateway) Version() uint64 {
	return g.cache.Version()
}

// Poll returns everything that changed in area after cur. Applying the
// result to a client state at cur yields the state at the returned version.
func (g *Gateway) Poll(ctx context.Context, area domain.Area, cur Cursor) (*api.PollResponse, error) {
	now := g.now().UTC()

	switch {
	case cur.Version != nil:
		g.metrics.polls.WithLabelValues("version").Inc()
		return g.pollVersion(ctx, area, *cur.Version, now)
	case cur.Since != nil:
		g.metrics.polls.WithLabelValues("timestamp").Inc()
		return g.pollSince(ctx, area, cur.Since.UTC(), now)
	default:
		g.metrics.polls.WithLabelValues("none").Inc()
		return g.full(ctx, area, g.cache.Snapshot(area, now), now)
	}
}

func (g *Gateway) pollVersion(ctx context.Context, area domain.Area, since uint64, now time.Time) (*api.PollResponse, error) {
	d := g.cache.Delta(area, since, now)
	if d.Reset {
		return g.full(ctx, area, pulse.Snapshot{Tiles: d.Changed, Version: d.Version}, now)
	}

	sigs, err := g.signals.ListChangedSignals(ctx, area, domain.VersionRange{After: since, UpTo: d.Version})
	if err != nil {
		return nil, fmt.Errorf("list changed signals: %w", err)
	}

	var spikes []domain.Spike
	for _, sp := range g.cache.Spikes(area, time.Time{}, now) {
		if sp.Version > since {
			spikes = append(spikes, sp)
		}
	}

	return &api.PollResponse{
		NewReports:   wire.Reports(sigs, g.labeler),
		PulseUpdates: wire.Tiles(d.Changed),
		RemovedTiles: d.Removed,
		Spikes:       wire.Spikes(spikes),
		Version:      d.Version,
		ServerTime:   now,
	}, nil
}

func (g *Gateway) pollSince(ctx context.Context, area domain.Area, since, now time.Time) (*api.PollResponse, error) {
	d := g.cache.ChangedSince(area, since, now)

	sigs, err := g.signals.ListSignals(ctx, domain.SignalFilter{Area: area, CreatedAfter: &since, ActiveAt: &now})
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	sigs = upTo(sigs, d.Version)

	return &api.PollResponse{
		NewReports:   wire.Reports(sigs, g.labeler),
		PulseUpdates: wire.Tiles(d.Changed),
		RemovedTiles: d.Removed,
		Spikes:       wire.Spikes(g.cache.Spikes(area, since, now)),
		Version:      d.Version,
		ServerTime:   now,
	}, nil
}

func (g *Gateway) full(ctx context.Context, area domain.Area, snap pulse.Snapshot, now time.Time) (*api.PollResponse, error) {
	sigs, err := g.signals.ListSignals(ctx, domain.SignalFilter{Area: area, ActiveAt: &now, Limit: snapshotReportLimit})
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	sigs = upTo(sigs, snap.Version)

	return &api.PollResponse{
		NewReports:   wire.Reports(sigs, g.labeler),
		PulseUpdates: wire.Tiles(snap.Tiles),
		RemovedTiles: []string{},
		Spikes:       wire.Spikes(g.cache.Spikes(area, time.Time{}, now)),
		Version:      snap.Version,
		Reset:        true,
		ServerTime:   now,
	}, nil
}

// Delta returns tile changes in area after since.
func (g *Gateway) Delta(area domain.Area, since uint64) api.PulseDelta {
	d := g.cache.Delta(area, since, g.now().UTC())
	return api.PulseDelta{
		ChangedTiles: wire.Tiles(d.Changed),
		RemovedTiles: d.Removed,
		Version:      d.Version,
		HasUpdates:   d.Reset || len(d.Changed) > 0 || len(d.Removed) > 0,
		Reset:        d.Reset,
	}
}

// Snapshot returns every live tile in area. Concurrent requests for the same
// area share one evaluation.
func (g *Gateway) Snapshot(ctx context.Context, area domain.Area) (api.PulseResponse, error) {
	key := fmt.Sprintf("%.4f:%.4f:%.3f", area.Center.Lat, area.Center.Lng, area.RadiusKm)
	ch := g.group.DoChan(key, func() (any, error) {
		now := g.now().UTC()
		snap := g.cache.Snapshot(area, now)
		return api.PulseResponse{Tiles: wire.Tiles(snap.Tiles), Version: snap.Version, ServerTime: now}, nil
	})

	select {
	case <-ctx.Done():
		return api.PulseResponse{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return api.PulseResponse{}, res.Err
		}
		return res.Val.(api.PulseResponse), nil
	}
}

// unknownReason buckets tiles without a dominant reason.
const unknownReason = "unknown"

// Stats summarises the live tiles in area.
func (g *Gateway) Stats(area domain.Area) api.PulseStats {
	now := g.now().UTC()
	snap := g.cache.Snapshot(area, now)

	stats := api.PulseStats{
		TotalActive: len(snap.Tiles),
		ConfidenceDistribution: map[string]int{
			string(domain.ConfidenceHigh):   0,
			string(domain.ConfidenceMedium): 0,
			string(domain.ConfidenceLow):    0,
		},
		ReasonDistribution: map[string]int{},
		Version:            snap.Version,
		ServerTime:         now,
	}
	var intensity float64
	for _, t := range snap.Tiles {
		intensity += t.Intensity
		stats.ConfidenceDistribution[string(t.Confidence)]++
		reason := unknownReason
		if t.DominantReason != nil {
			reason = string(*t.DominantReason)
		}
		stats.ReasonDistribution[reason]++
	}
	stats.HighConfidenceCount = stats.ConfidenceDistribution[string(domain.ConfidenceHigh)]
	if len(snap.Tiles) > 0 {
		stats.AverageIntensity = math.Round(intensity/float64(len(snap.Tiles))*1000) / 1000
	}
	return stats
}

// upTo drops signals written above the visible version, which belong to
// commits readers must not observe yet.
func upTo(sigs []domain.Signal, version uint64) []domain.Signal {
	out := sigs[:0:0]
	for _, s := range sigs {
		if s.Version <= version {
			out = append(out, s)
		}
	}
	return out
}
