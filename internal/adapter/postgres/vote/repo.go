// Package vote implements the Vote repository using PostgreSQL.
package vote

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

const table = "votes"

var columns = []string{"signal_id", "voter_id", "is_true", "cast_at"}

// Repo provides vote persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new vote repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetVote returns the vote of voterID on a signal.
func (r *Repo) GetVote(ctx context.Context, signalID uuid.UUID, voterID string) (domain.Vote, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"signal_id": signalID, "voter_id": voterID}).
		ToSql()
	if err != nil {
		return domain.Vote{}, fmt.Errorf("build get vote: %w", err)
	}

	v, err := scanVote(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Vote{}, postgres.MapError(err, "vote", signalID)
	}
	return v, nil
}

// ListVotes returns the votes of a signal ordered by cast time.
func (r *Repo) ListVotes(ctx context.Context, signalID uuid.UUID) ([]domain.Vote, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"signal_id": signalID}).
		OrderBy("cast_at", "voter_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list votes: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	out := []domain.Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return out, nil
}

// CreateVote inserts a vote. A second vote by the same voter returns
// domain.ErrAlreadyExists; a vote on a missing signal returns domain.ErrNotFound.
func (r *Repo) CreateVote(ctx context.Context, v domain.Vote) error {
	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(v.SignalID, v.VoterID, v.IsTrue, v.CastAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert vote: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "vote", v.SignalID)
	}
	return nil
}

// DeleteVote removes one vote. Returns domain.ErrNotFound if it does not exist.
func (r *Repo) DeleteVote(ctx context.Context, signalID uuid.UUID, voterID string) error {
	query, args, err := postgres.Builder().
		Delete(table).
		Where(squirrel.Eq{"signal_id": signalID, "voter_id": voterID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete vote: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "vote", signalID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vote %s: %w", signalID, domain.ErrNotFound)
	}
	return nil
}

// DeleteVotes removes every vote of a signal and returns how many there were.
func (r *Repo) DeleteVotes(ctx context.Context, signalID uuid.UUID) (int, error) {
	query, args, err := postgres.Builder().
		Delete(table).
		Where(squirrel.Eq{"signal_id": signalID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete votes: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, postgres.MapError(err, "vote", signalID)
	}
	return int(tag.RowsAffected()), nil
}

func scanVote(row pgx.Row) (domain.Vote, error) {
	var v domain.Vote
	if err := row.Scan(&v.SignalID, &v.VoterID, &v.IsTrue, &v.CastAt); err != nil {
		return domain.Vote{}, err
	}
	v.CastAt = v.CastAt.UTC()
	return v, nil
}
