package report

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

const expiryBatch = 500

// ExpireDue marks every signal past its expiry as expired and recomputes the
// affected tiles, one tile per transaction. It returns the number of signals
// expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.signals.ListExpiring(ctx, now, expiryBatch)
	if err != nil {
		return 0, fmt.Errorf("list expiring: %w", err)
	}

	byTile := make(map[string][]uuid.UUID)
	for _, sig := range due {
		byTile[sig.TileKey] = append(byTile[sig.TileKey], sig.ID)
	}
	keys := make([]string, 0, len(byTile))
	for k := range byTile {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	total := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.expireTile(ctx, key, byTile[key], now)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		s.metrics.expired.Add(float64(total))
		s.log.InfoContext(ctx, "signals expired", slog.Int("count", total), slog.Int("tiles", len(keys)))
	}
	return total, nil
}

func (s *Service) expireTile(ctx context.Context, key string, ids []uuid.UUID, now time.Time) (int, error) {
	lockKeys := make([]string, 0, len(ids))
	for _, id := range ids {
		lockKeys = append(lockKeys, signalLockKey(id))
	}
	unlockSignals := s.locks.LockAll(lockKeys)
	defer unlockSignals()
	unlockTile := s.locks.Lock(tileLockKey(key))
	defer unlockTile()

	expired := 0
	c, err := s.commit(ctx, "expire", []string{key}, now, func(ctx context.Context, version uint64) error {
		for _, id := range ids {
			sig, err := s.signals.GetSignal(ctx, id)
			if err != nil {
				return fmt.Errorf("get signal %s: %w", id, err)
			}
			next, changed := s.scorer.Expire(sig, now)
			if !changed {
				continue
			}
			next.Version = version
			if err := s.signals.UpdateSignal(ctx, next); err != nil {
				return fmt.Errorf("update signal %s: %w", id, err)
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.notifyTiles(c)
	return expired, nil
}

// RunExpiry calls ExpireDue every interval until ctx is done. Errors are
// logged and retried on the next tick.
func (s *Service) RunExpiry(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ExpireDue(ctx); err != nil && ctx.Err() == nil {
				s.log.ErrorContext(ctx, "expiry sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
