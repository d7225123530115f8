// Package signal implements the Signal repository using PostgreSQL.
package signal

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

const table = "signals"

var columns = []string{
	"id", "owner_id", "lat", "lng", "tile_key", "type", "severity", "context", "status",
	"true_votes", "false_votes", "trust_score", "confidence_score", "severity_weight", "abuse_flags",
	"deleted_by_owner", "delete_reason",
	"created_at", "last_activity_at", "expires_at", "vote_window_expires_at", "verified_at", "disputed_at",
	"version",
}

// Repo provides signal persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new signal repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetSignal returns a signal by primary key.
func (r *Repo) GetSignal(ctx context.Context, id uuid.UUID) (domain.Signal, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Signal{}, fmt.Errorf("build get signal: %w", err)
	}

	sig, err := scanSignal(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Signal{}, postgres.MapError(err, "signal", id)
	}
	return sig, nil
}

// ListSignals returns signals matching filter, newest first. The area is
// pre-filtered by its bounding box in SQL and checked exactly afterwards.
func (r *Repo) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	q := withArea(postgres.Builder().Select(columns...).From(table), filter.Area).
		OrderBy("created_at DESC", "id")

	if filter.CreatedAfter != nil {
		q = q.Where(squirrel.Gt{"created_at": *filter.CreatedAfter})
	}
	if filter.ActiveAt != nil {
		q = withActiveAt(q, *filter.ActiveAt)
	}
	if filter.Limit > 0 && filter.Area.IsGlobal() {
		q = q.Limit(uint64(filter.Limit))
	}

	out, err := r.list(ctx, q, filter.Area)
	if err != nil {
		return nil, err
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListTileSignals returns the signals of a tile that are active at activeAt.
func (r *Repo) ListTileSignals(ctx context.Context, tileKey string, activeAt time.Time) ([]domain.Signal, error) {
	q := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"tile_key": tileKey}).
		OrderBy("id")
	return r.list(ctx, withActiveAt(q, activeAt), domain.Area{})
}

// ListExpiring returns non-terminal signals whose expiry has passed, oldest
// expiry first.
func (r *Repo) ListExpiring(ctx context.Context, now time.Time, limit int) ([]domain.Signal, error) {
	q := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"status": activeStatuses()}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.list(ctx, q, domain.Area{})
}

// ListChangedSignals returns signals in area whose version is within rng,
// ordered by version.
func (r *Repo) ListChangedSignals(ctx context.Context, area domain.Area, rng domain.VersionRange) ([]domain.Signal, error) {
	q := withArea(postgres.Builder().Select(columns...).From(table), area).
		Where(squirrel.Gt{"version": int64(rng.After)}).
		Where(squirrel.LtOrEq{"version": int64(rng.UpTo)}).
		OrderBy("version", "id")
	return r.list(ctx, q, area)
}

func (r *Repo) list(ctx context.Context, q squirrel.SelectBuilder, area domain.Area) ([]domain.Signal, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list signals: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	out := []domain.Signal{}
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if area.Contains(sig.Location) {
			out = append(out, sig)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// CreateSignal inserts a new signal.
func (r *Repo) CreateSignal(ctx context.Context, sig domain.Signal) error {
	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(values(sig)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert signal: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "signal", sig.ID)
	}
	return nil
}

// UpdateSignal overwrites every mutable column of an existing signal.
func (r *Repo) UpdateSignal(ctx context.Context, sig domain.Signal) error {
	set := make(map[string]any, len(columns)-1)
	for i, v := range values(sig) {
		if columns[i] != "id" {
			set[columns[i]] = v
		}
	}

	query, args, err := postgres.Builder().
		Update(table).
		SetMap(set).
		Where(squirrel.Eq{"id": sig.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update signal: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "signal", sig.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("signal %s: %w", sig.ID, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func withArea(q squirrel.SelectBuilder, area domain.Area) squirrel.SelectBuilder {
	if area.IsGlobal() {
		return q
	}
	minLat, maxLat, minLng, maxLng := area.Bounds()
	return q.Where(squirrel.And{
		squirrel.GtOrEq{"lat": minLat}, squirrel.LtOrEq{"lat": maxLat},
		squirrel.GtOrEq{"lng": minLng}, squirrel.LtOrEq{"lng": maxLng},
	})
}

func withActiveAt(q squirrel.SelectBuilder, at time.Time) squirrel.SelectBuilder {
	return q.Where(squirrel.Eq{"status": activeStatuses()}).
		Where(squirrel.Gt{"expires_at": at})
}

func activeStatuses() []string {
	out := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func values(sig domain.Signal) []any {
	ctxMap := sig.Context
	if ctxMap == nil {
		ctxMap = map[string]string{}
	}
	flags := make([]string, len(sig.AbuseFlags))
	for i, f := range sig.AbuseFlags {
		flags[i] = string(f)
	}
	return []any{
		sig.ID, sig.OwnerID, sig.Location.Lat, sig.Location.Lng, sig.TileKey, string(sig.Type), sig.Severity,
		ctxMap, string(sig.Status),
		sig.TrueVotes, sig.FalseVotes, sig.TrustScore, sig.ConfidenceScore, sig.SeverityWeight, flags,
		sig.DeletedByOwner, sig.DeleteReason,
		sig.CreatedAt, sig.LastActivityAt, sig.ExpiresAt, sig.VoteWindowExpiresAt, sig.VerifiedAt, sig.DisputedAt,
		int64(sig.Version),
	}
}

func scanSignal(row pgx.Row) (domain.Signal, error) {
	var (
		sig      domain.Signal
		typ      string
		status   string
		flags    []string
		severity int16
		version  int64
	)
	err := row.Scan(
		&sig.ID, &sig.OwnerID, &sig.Location.Lat, &sig.Location.Lng, &sig.TileKey, &typ, &severity,
		&sig.Context, &status,
		&sig.TrueVotes, &sig.FalseVotes, &sig.TrustScore, &sig.ConfidenceScore, &sig.SeverityWeight, &flags,
		&sig.DeletedByOwner, &sig.DeleteReason,
		&sig.CreatedAt, &sig.LastActivityAt, &sig.ExpiresAt, &sig.VoteWindowExpiresAt, &sig.VerifiedAt, &sig.DisputedAt,
		&version,
	)
	if err != nil {
		return domain.Signal{}, err
	}

	sig.Type = domain.SignalType(typ)
	sig.Status = domain.SignalStatus(status)
	sig.Severity = int(severity)
	sig.Version = uint64(version)
	for _, f := range flags {
		sig.AbuseFlags = append(sig.AbuseFlags, domain.AbuseFlag(f))
	}
	slices.Sort(sig.AbuseFlags)

	sig.CreatedAt = sig.CreatedAt.UTC()
	sig.LastActivityAt = sig.LastActivityAt.UTC()
	sig.ExpiresAt = sig.ExpiresAt.UTC()
	sig.VoteWindowExpiresAt = sig.VoteWindowExpiresAt.UTC()
	sig.VerifiedAt = utcPtr(sig.VerifiedAt)
	sig.DisputedAt = utcPtr(sig.DisputedAt)
	return sig, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
