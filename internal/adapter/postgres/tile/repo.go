// Package tile persists the latest version of every pulse tile, including
// tombstones, so the pulse cache can be rebuilt after a restart.
package tile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

const table = "pulse_tiles"

var columns = []string{
	"tile_key", "lat", "lng", "radius_meters", "intensity", "confidence", "dominant_reason",
	"signal_count", "last_updated", "version", "removed", "updated_at",
}

const upsertSuffix = `ON CONFLICT (tile_key) DO UPDATE SET
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	radius_meters = EXCLUDED.radius_meters,
	intensity = EXCLUDED.intensity,
	confidence = EXCLUDED.confidence,
	dominant_reason = EXCLUDED.dominant_reason,
	signal_count = EXCLUDED.signal_count,
	last_updated = EXCLUDED.last_updated,
	version = EXCLUDED.version,
	removed = EXCLUDED.removed,
	updated_at = EXCLUDED.updated_at
WHERE pulse_tiles.version < EXCLUDED.version`

// Repo provides tile persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new tile repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// UpsertTile stores rec unless a newer version of the tile is already stored.
func (r *Repo) UpsertTile(ctx context.Context, rec domain.TileRecord) error {
	t := rec.Tile
	var reason *string
	if t.DominantReason != nil {
		s := string(*t.DominantReason)
		reason = &s
	}
	confidence := t.Confidence
	if confidence == "" {
		confidence = domain.ConfidenceLow
	}

	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(
			t.TileKey, t.Centroid.Lat, t.Centroid.Lng, t.RadiusMeters, t.Intensity, string(confidence), reason,
			t.SignalCount, t.LastUpdated, int64(t.Version), rec.Removed, rec.UpdatedAt,
		).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert tile: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "pulse_tile", t.TileKey)
	}
	return nil
}

// ListTiles returns every tile record ordered by key.
func (r *Repo) ListTiles(ctx context.Context) ([]domain.TileRecord, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		OrderBy("tile_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tiles: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pulse_tiles: %w", err)
	}
	defer rows.Close()

	out := []domain.TileRecord{}
	for rows.Next() {
		rec, err := scanTile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pulse_tile: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pulse_tiles: %w", err)
	}
	return out, nil
}

func scanTile(row pgx.Row) (domain.TileRecord, error) {
	var (
		rec        domain.TileRecord
		confidence string
		reason     *string
		version    int64
	)
	t := &rec.Tile
	err := row.Scan(
		&t.TileKey, &t.Centroid.Lat, &t.Centroid.Lng, &t.RadiusMeters, &t.Intensity, &confidence, &reason,
		&t.SignalCount, &t.LastUpdated, &version, &rec.Removed, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.TileRecord{}, err
	}

	t.Confidence = domain.ConfidenceLabel(confidence)
	if reason != nil {
		st := domain.SignalType(*reason)
		t.DominantReason = &st
	}
	t.Version = uint64(version)
	t.LastUpdated = t.LastUpdated.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
