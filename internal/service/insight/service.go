// Package insight derives heuristic area reads from recent reports: the
// time-of-day risk, graded risk zones and clusters of nearby reports.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
)

// clusterSaturation is the report count at which a cluster stops growing
// more intense.
const clusterSaturation = 10

type signalLister interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
}

// Service computes insight reads over the signal store.
type Service struct {
	cfg     config.InsightConfig
	signals signalLister
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(cfg config.InsightConfig, signals signalLister, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, signals: signals, log: logger.With("service", "insight"), now: time.Now}
}

// TimeRisk grades the current UTC hour.
func (s *Service) TimeRisk() domain.TimeRisk {
	now := s.now().UTC()
	h := now.Hour()
	r := domain.TimeRisk{Hour: h, Multiplier: 1, Level: domain.TimeRiskNormal, At: now}
	if s.isNight(h) {
		r.IsNight = true
		r.Multiplier = s.cfg.NightMultiplier
		r.Level = domain.TimeRiskElevated
	}
	return r
}

// isNight handles both a window wrapping midnight (22..6) and a same-day one.
func (s *Service) isNight(h int) bool {
	start, end := s.cfg.NightStartHour, s.cfg.NightEndHour
	if start > end {
		return h >= start || h < end
	}
	return h >= start && h < end
}

// RiskZones groups the recent active signals in area by geohash cell and
// grades every cell by trust-weighted severity, decayed by the age of its
// newest report.
func (s *Service) RiskZones(ctx context.Context, area domain.Area) (domain.RiskZones, error) {
	now := s.now().UTC()
	out := domain.RiskZones{EvaluatedAt: now}

	groups, err := s.recent(ctx, area, now, s.cfg.ZonePrecision)
	if err != nil {
		return out, err
	}

	for key, sigs := range groups {
		var weighted, weight float64
		newest := sigs[0].CreatedAt
		for _, sig := range sigs {
			weighted += float64(sig.Severity) * sig.TrustScore
			weight += sig.TrustScore
			if sig.CreatedAt.After(newest) {
				newest = sig.CreatedAt
			}
		}
		if weight <= 0 {
			continue
		}
		age := now.Sub(newest).Hours()
		risk := (weighted / weight / trust.MaxSeverity) * math.Exp(-age/24)

		zone := domain.RiskZone{
			Key:         key,
			Centroid:    centroid(sigs),
			RiskScore:   round(risk, 3),
			SignalCount: len(sigs),
			LastReport:  newest,
		}
		switch {
		case risk >= s.cfg.HighZoneRisk:
			out.High = append(out.High, zone)
		case risk >= s.cfg.MediumZoneRisk:
			out.Medium = append(out.Medium, zone)
		}
	}

	out.High = topZones(out.High, s.cfg.MaxZones)
	out.Medium = topZones(out.Medium, s.cfg.MaxZones)
	return out, nil
}

// Clusters groups the recent active signals in area by fine geohash cell and
// returns the cells holding at least MinClusterSize reports, most intense
// first.
func (s *Service) Clusters(ctx context.Context, area domain.Area) ([]domain.Cluster, error) {
	now := s.now().UTC()
	groups, err := s.recent(ctx, area, now, s.cfg.ClusterPrecision)
	if err != nil {
		return nil, err
	}

	var out []domain.Cluster
	for key, sigs := range groups {
		if len(sigs) < s.cfg.MinClusterSize {
			continue
		}
		sev := 0
		newest := sigs[0].CreatedAt
		var types []domain.SignalType
		for _, sig := range sigs {
			sev += sig.Severity
			if sig.CreatedAt.After(newest) {
				newest = sig.CreatedAt
			}
			if !slices.Contains(types, sig.Type) {
				types = append(types, sig.Type)
			}
		}
		slices.Sort(types)
		avgSeverity := float64(sev) / float64(len(sigs))
		out = append(out, domain.Cluster{
			ID:          key,
			Centroid:    centroid(sigs),
			SignalCount: len(sigs),
			SignalTypes: types,
			Intensity:   round(min(1, float64(len(sigs))/clusterSaturation)*avgSeverity/trust.MaxSeverity, 2),
			DetectedAt:  newest,
		})
	}

	slices.SortFunc(out, func(a, b domain.Cluster) int {
		if a.Intensity != b.Intensity {
			if a.Intensity > b.Intensity {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(out) > s.cfg.MaxClusters {
		out = out[:s.cfg.MaxClusters]
	}
	s.log.DebugContext(ctx, "clusters evaluated", slog.Int("cells", len(groups)), slog.Int("clusters", len(out)))
	return out, nil
}

func (s *Service) recent(ctx context.Context, area domain.Area, now time.Time, precision uint) (map[string][]domain.Signal, error) {
	after := now.Add(-s.cfg.Lookback)
	sigs, err := s.signals.ListSignals(ctx, domain.SignalFilter{Area: area, CreatedAfter: &after, ActiveAt: &now})
	if err != nil {
		return nil, fmt.Errorf("list recent signals: %w", err)
	}

	groups := make(map[string][]domain.Signal)
	for _, sig := range sigs {
		key := geohash.EncodeWithPrecision(sig.Location.Lat, sig.Location.Lng, precision)
		groups[key] = append(groups[key], sig)
	}
	return groups, nil
}

func centroid(sigs []domain.Signal) domain.Location {
	var lat, lng float64
	for _, sig := range sigs {
		lat += sig.Location.Lat
		lng += sig.Location.Lng
	}
	n := float64(len(sigs))
	return domain.Location{Lat: round(lat/n, 6), Lng: round(lng/n, 6)}
}

func topZones(zones []domain.RiskZone, limit int) []domain.RiskZone {
	slices.SortFunc(zones, func(a, b domain.RiskZone) int {
		if a.RiskScore != b.RiskScore {
			if a.RiskScore > b.RiskScore {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})
	if len(zones) > limit {
		zones = zones[:limit]
	}
	return zones
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
