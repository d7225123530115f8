package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// UniqueTileKey returns a tile key no other test uses. It is not a valid
// geohash; repositories treat keys as opaque.
func UniqueTileKey() string {
	return "t" + uniqueSuffix()
}

// BuildSignal returns a pending signal owned by a fresh identity, created
// now and located at loc. Times are truncated to PostgreSQL precision.
func BuildSignal(loc domain.Location, tileKey string) domain.Signal {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Signal{
		ID:                  uuid.New(),
		OwnerID:             "device:" + uniqueSuffix(),
		Location:            loc,
		TileKey:             tileKey,
		Type:                domain.SignalTypeHarassment,
		Severity:            3,
		Context:             map[string]string{"lighting": "dark"},
		Status:              domain.SignalStatusPending,
		TrustScore:          0.55,
		ConfidenceScore:     0,
		SeverityWeight:      0.6,
		CreatedAt:           now,
		LastActivityAt:      now,
		ExpiresAt:           now.Add(24 * time.Hour),
		VoteWindowExpiresAt: now.Add(72 * time.Hour),
		Version:             1,
	}
}

// SeedSignal inserts sig directly and returns it.
func SeedSignal(t *testing.T, pool *pgxpool.Pool, sig domain.Signal) domain.Signal {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`INSERT INTO signals (id, owner_id, lat, lng, tile_key, type, severity, status,
		                      trust_score, confidence_score, severity_weight,
		                      created_at, last_activity_at, expires_at, vote_window_expires_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sig.ID, sig.OwnerID, sig.Location.Lat, sig.Location.Lng, sig.TileKey, string(sig.Type), sig.Severity,
		string(sig.Status), sig.TrustScore, sig.ConfidenceScore, sig.SeverityWeight,
		sig.CreatedAt, sig.LastActivityAt, sig.ExpiresAt, sig.VoteWindowExpiresAt, int64(sig.Version),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSignal insert: %v", err)
	}
	return sig
}
