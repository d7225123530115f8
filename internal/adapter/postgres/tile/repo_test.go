package tile_test

import (
	"context"
	"testing"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres/tile"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

func buildRecord(key string, version uint64, removed bool) domain.TileRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	reason := domain.SignalTypeFollowed
	rec := domain.TileRecord{
		Tile: domain.PulseTile{
			TileKey:        key,
			Centroid:       domain.Location{Lat: 50.45, Lng: 30.52},
			RadiusMeters:   200,
			Intensity:      0.35,
			Confidence:     domain.ConfidenceMedium,
			DominantReason: &reason,
			SignalCount:    3,
			LastUpdated:    now,
			Version:        version,
		},
		Removed:   removed,
		UpdatedAt: now,
	}
	if removed {
		rec.Tile = domain.PulseTile{TileKey: key, Centroid: rec.Tile.Centroid, LastUpdated: now, Version: version}
	}
	return rec
}

func find(t *testing.T, repo *tile.Repo, key string) (domain.TileRecord, bool) {
	t.Helper()
	list, err := repo.ListTiles(context.Background())
	if err != nil {
		t.Fatalf("ListTiles: %v", err)
	}
	for _, rec := range list {
		if rec.Tile.TileKey == key {
			return rec, true
		}
	}
	return domain.TileRecord{}, false
}

func TestRepo_UpsertAndList(t *testing.T) {
	t.Parallel()
	repo := tile.New(testhelper.SetupTestDB(t))
	key := testhelper.UniqueTileKey()

	want := buildRecord(key, 5, false)
	if err := repo.UpsertTile(context.Background(), want); err != nil {
		t.Fatalf("UpsertTile: %v", err)
	}

	got, ok := find(t, repo, key)
	if !ok {
		t.Fatal("tile not listed after upsert")
	}
	if got.Tile.Version != 5 || got.Tile.SignalCount != 3 || got.Tile.Confidence != domain.ConfidenceMedium {
		t.Errorf("unexpected tile: %+v", got.Tile)
	}
	if got.Tile.DominantReason == nil || *got.Tile.DominantReason != domain.SignalTypeFollowed {
		t.Errorf("DominantReason: got %v", got.Tile.DominantReason)
	}
	if got.Removed {
		t.Error("tile should not be a tombstone")
	}
}

func TestRepo_Upsert_Tombstone(t *testing.T) {
	t.Parallel()
	repo := tile.New(testhelper.SetupTestDB(t))
	ctx := context.Background()
	key := testhelper.UniqueTileKey()

	if err := repo.UpsertTile(ctx, buildRecord(key, 5, false)); err != nil {
		t.Fatalf("UpsertTile: %v", err)
	}
	if err := repo.UpsertTile(ctx, buildRecord(key, 6, true)); err != nil {
		t.Fatalf("UpsertTile tombstone: %v", err)
	}

	got, _ := find(t, repo, key)
	if !got.Removed || got.Tile.Version != 6 {
		t.Errorf("expected tombstone at version 6, got removed=%v version=%d", got.Removed, got.Tile.Version)
	}
	if got.Tile.DominantReason != nil || got.Tile.Confidence != domain.ConfidenceLow {
		t.Errorf("tombstone should carry no reason and LOW confidence: %+v", got.Tile)
	}
}

func TestRepo_Upsert_IgnoresOlderVersion(t *testing.T) {
	t.Parallel()
	repo := tile.New(testhelper.SetupTestDB(t))
	ctx := context.Background()
	key := testhelper.UniqueTileKey()

	if err := repo.UpsertTile(ctx, buildRecord(key, 9, false)); err != nil {
		t.Fatalf("UpsertTile: %v", err)
	}
	if err := repo.UpsertTile(ctx, buildRecord(key, 4, true)); err != nil {
		t.Fatalf("UpsertTile older: %v", err)
	}

	got, _ := find(t, repo, key)
	if got.Tile.Version != 9 || got.Removed {
		t.Errorf("older write replaced newer tile: version=%d removed=%v", got.Tile.Version, got.Removed)
	}
}
