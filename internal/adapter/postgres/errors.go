package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var pgCodeErrors = map[string]error{
	codeUniqueViolation:     domain.ErrAlreadyExists,
	codeForeignKeyViolation: domain.ErrNotFound,
	codeCheckViolation:      domain.ErrValidation,
}

// MapError wraps err with the entity it concerns and, where one applies,
// the domain sentinel. id is whatever identifies the row (a signal UUID, a
// tile key) and only appears in the message. The original error stays in
// the chain so retry decisions still see the SQLSTATE.
func MapError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if sentinel, ok := pgCodeErrors[pgErr.Code]; ok {
				return fmt.Errorf("%s %v: %w: %w", entity, id, sentinel, err)
			}
		}
	}
	return fmt.Errorf("%s %v: %w", entity, id, err)
}

// isRetryable reports whether the transaction that produced err can be
// retried from the start.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
