package report

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
)

// change is the committed result of one pipeline run.
type change struct {
	Version uint64
	Tiles   []domain.PulseTile
	Removed []string
	Spikes  []domain.Spike
}

// commit runs mutate and the recomputation of tileKeys in one transaction
// tagged with a fresh cache version, then publishes the new tile states.
// The caller must hold the tile locks of tileKeys. On any error the
// transaction is rolled back and the version is released unused, so neither
// the store nor the cache observes a partial change.
func (s *Service) commit(
	ctx context.Context,
	op string,
	tileKeys []string,
	now time.Time,
	mutate func(ctx context.Context, version uint64) error,
) (change, error) {
	ctx, span := tracer.Start(ctx, "report."+op, trace.WithAttributes(
		attribute.StringSlice("tile_keys", tileKeys),
	))
	defer span.End()

	start := time.Now()
	ticket := s.cache.Begin()
	span.SetAttributes(attribute.Int64("version", int64(ticket.Version)))

	var (
		states []pulse.TileState
		result = change{Version: ticket.Version}
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// The store may retry the callback after a serialization failure.
		states = states[:0]
		result = change{Version: ticket.Version}

		if err := mutate(txCtx, ticket.Version); err != nil {
			return err
		}
		for _, key := range tileKeys {
			st, tile, spike, err := s.recomputeTile(txCtx, key, ticket.Version, now)
			if err != nil {
				return err
			}
			if st == nil {
				continue
			}
			states = append(states, *st)
			if st.Removed {
				result.Removed = append(result.Removed, key)
			} else {
				result.Tiles = append(result.Tiles, tile)
			}
			if spike != nil {
				result.Spikes = append(result.Spikes, *spike)
			}
		}
		return nil
	})
	if err != nil {
		s.cache.Abort(ticket)
		s.metrics.commitFailed.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return change{}, err
	}

	s.cache.Publish(ticket, states...)
	s.metrics.commitTime.Observe(time.Since(start).Seconds())
	s.metrics.tileVersion.Set(float64(s.cache.Version()))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// recomputeTile derives and persists the new state of one tile. It returns a
// nil state when the tile was never visible and stays empty. spike is set
// only when a burst is detected that the previous state did not carry.
func (s *Service) recomputeTile(ctx context.Context, key string, version uint64, now time.Time) (*pulse.TileState, domain.PulseTile, *domain.Spike, error) {
	members, err := s.signals.ListTileSignals(ctx, key, now)
	if err != nil {
		return nil, domain.PulseTile{}, nil, fmt.Errorf("list tile %s signals: %w", key, err)
	}

	prev, existed := s.cache.Latest(key)
	tile, ok := s.agg.Compute(key, members, now)
	if !ok && !existed {
		return nil, domain.PulseTile{}, nil, nil
	}

	st := &pulse.TileState{
		Key:       key,
		Members:   members,
		Removed:   !ok,
		Version:   version,
		UpdatedAt: now,
	}
	if !ok {
		tile = domain.PulseTile{TileKey: key, Centroid: s.agg.Centroid(key)}
	}
	tile.Version = version

	var fresh *domain.Spike
	if ok {
		sp, isNew := s.agg.ContinueSpike(prev.Spike, s.agg.DetectSpike(key, members, now))
		if sp != nil {
			sp.Version = version
			if isNew {
				fresh = sp
			}
		}
		st.Spike = sp
	}

	if err := s.tiles.UpsertTile(ctx, domain.TileRecord{Tile: tile, Removed: !ok, UpdatedAt: now}); err != nil {
		return nil, domain.PulseTile{}, nil, fmt.Errorf("upsert tile %s: %w", key, err)
	}
	return st, tile, fresh, nil
}

// notifyTiles forwards a committed change to realtime subscribers.
func (s *Service) notifyTiles(c change) {
	if len(c.Tiles) > 0 || len(c.Removed) > 0 {
		s.notifier.TilesChanged(c.Tiles, c.Removed, c.Version)
	}
	for _, sp := range c.Spikes {
		s.notifier.SpikeDetected(sp)
	}
}
