package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// DeleteResult is the outcome of an owner deletion.
type DeleteResult struct {
	Signal       domain.Signal
	VotesRemoved int
	Version      uint64
}

// Delete removes the caller's own signal together with all its votes and
// takes it out of its tile.
func (s *Service) Delete(ctx context.Context, signalID uuid.UUID, in DeleteInput) (*DeleteResult, error) {
	identity, ok := ctxutil.IdentityFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()

	unlockSignal := s.locks.Lock(signalLockKey(signalID))
	defer unlockSignal()

	sig, err := s.signals.GetSignal(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if err := s.scorer.CheckDeletable(sig, identity.ID, now); err != nil {
		return nil, err
	}
	if err := s.guard.CheckDeletion(identity.ID, now); err != nil {
		s.metrics.rejections.WithLabelValues("deletion").Inc()
		return nil, err
	}

	unlockTile := s.locks.Lock(tileLockKey(sig.TileKey))
	defer unlockTile()

	var removed int
	base := sig
	c, err := s.commit(ctx, "delete", []string{sig.TileKey}, now, func(ctx context.Context, version uint64) error {
		n, err := s.votes.DeleteVotes(ctx, signalID)
		if err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		removed = n

		next := base
		next.Status = domain.SignalStatusDeleted
		next.DeletedByOwner = true
		next.DeleteReason = in.Reason
		next.TrueVotes, next.FalseVotes = 0, 0
		next = s.scorer.Recompute(next)
		next.LastActivityAt = now
		next.Version = version
		if err := s.signals.UpdateSignal(ctx, next); err != nil {
			return fmt.Errorf("update signal: %w", err)
		}
		sig = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.guard.RecordDeletion(identity.ID, now)

	s.metrics.deletions.Inc()
	s.log.InfoContext(ctx, "signal deleted by owner",
		slog.String("signal_id", signalID.String()),
		slog.Int("votes_removed", removed),
	)

	s.notifier.SignalDeleted(sig)
	s.notifyTiles(c)
	return &DeleteResult{Signal: sig, VotesRemoved: removed, Version: c.Version}, nil
}
