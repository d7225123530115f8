package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// writerLockKey is the advisory lock id of the process that owns signal
// writes. Tile versions come from that process's in-memory counter, so a
// second writer against the same database would publish versions nobody
// streams.
const writerLockKey int64 = 0x5afe9015e

// ErrWriterLocked is returned when another process holds the writer lock.
var ErrWriterLocked = errors.New("another process holds the writer lock")

// WriterLock is a session advisory lock pinned to one connection taken out
// of the pool for the lock's lifetime.
type WriterLock struct {
	conn *pgxpool.Conn
}

// AcquireWriterLock takes the writer lock without waiting. It returns
// ErrWriterLocked when the lock is held elsewhere.
func AcquireWriterLock(ctx context.Context, pool *pgxpool.Pool) (*WriterLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire writer lock connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", writerLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrWriterLocked
	}
	return &WriterLock{conn: conn}, nil
}

// Release ends the lock's session. The connection is closed instead of being
// returned to the pool, which drops the lock even if the unlock query would fail.
func (l *WriterLock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	conn := l.conn.Hijack()
	l.conn = nil
	return conn.Close(ctx)
}
