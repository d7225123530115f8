package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// RemoveVote withdraws the caller's vote. Scores are recomputed from the
// remaining votes; a verified or disputed status is kept.
func (s *Service) RemoveVote(ctx context.Context, signalID uuid.UUID) (*VoteResult, error) {
	identity, ok := ctxutil.IdentityFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	now := s.now()

	unlockSignal := s.locks.Lock(signalLockKey(signalID))
	defer unlockSignal()

	sig, err := s.signals.GetSignal(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if sig.Status.IsTerminal() || !now.Before(sig.ExpiresAt) {
		return nil, domain.NewConflictError(domain.ConflictSignalClosed, "signal is no longer active")
	}

	unlockTile := s.locks.Lock(tileLockKey(sig.TileKey))
	defer unlockTile()

	var prior domain.Vote
	base := sig
	c, err := s.commit(ctx, "remove_vote", []string{sig.TileKey}, now, func(ctx context.Context, version uint64) error {
		v, err := s.votes.GetVote(ctx, signalID, identity.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("vote: %w", domain.ErrNotFound)
			}
			return fmt.Errorf("get vote: %w", err)
		}
		prior = v

		if err := s.votes.DeleteVote(ctx, signalID, identity.ID); err != nil {
			return fmt.Errorf("delete vote: %w", err)
		}

		next, err := s.rescore(ctx, base, now, version)
		if err != nil {
			return err
		}
		if err := s.signals.UpdateSignal(ctx, next); err != nil {
			return fmt.Errorf("update signal: %w", err)
		}
		sig = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.votes.WithLabelValues("removed").Inc()
	s.notifier.VoteChanged(sig, prior, true)
	s.notifyTiles(c)
	return &VoteResult{Signal: sig, Summary: s.scorer.Summary(sig), Version: c.Version}, nil
}
