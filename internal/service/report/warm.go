package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
)

// Warm loads persisted tiles into the cache so versions continue from where
// the previous process stopped. Live tiles are rebuilt from their active
// signals; removed tiles are kept as tombstones.
func (s *Service) Warm(ctx context.Context) error {
	records, err := s.tiles.ListTiles(ctx)
	if err != nil {
		return fmt.Errorf("list tiles: %w", err)
	}

	now := s.now()
	states := make([]pulse.TileState, 0, len(records))
	for _, rec := range records {
		st := pulse.TileState{
			Key:       rec.Tile.TileKey,
			Removed:   rec.Removed,
			Version:   rec.Tile.Version,
			UpdatedAt: rec.UpdatedAt,
		}
		if !rec.Removed {
			members, err := s.signals.ListTileSignals(ctx, rec.Tile.TileKey, now)
			if err != nil {
				return fmt.Errorf("list tile %s signals: %w", rec.Tile.TileKey, err)
			}
			st.Members = members
			st.Spike = s.agg.DetectSpike(rec.Tile.TileKey, members, now)
		}
		states = append(states, st)
	}

	s.cache.Load(states)
	s.metrics.tileVersion.Set(float64(s.cache.Version()))
	s.log.InfoContext(ctx, "pulse cache warmed",
		slog.Int("tiles", len(states)),
		slog.Uint64("version", s.cache.Version()),
	)
	return nil
}
