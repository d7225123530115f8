package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// VoteResult is the signal state after a vote change.
type VoteResult struct {
	Signal  domain.Signal
	Summary trust.Summary
	Version uint64
}

// CastVote records the caller's judgment on a signal. A second vote from the
// same caller is rejected until the first one is removed.
func (s *Service) CastVote(ctx context.Context, signalID uuid.UUID, isTrue bool) (*VoteResult, error) {
	identity, ok := ctxutil.IdentityFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	now := s.now()
	if err := s.guard.CheckVote(identity.ID, now); err != nil {
		s.metrics.rejections.WithLabelValues("vote").Inc()
		return nil, err
	}

	unlockSignal := s.locks.Lock(signalLockKey(signalID))
	defer unlockSignal()

	sig, err := s.signals.GetSignal(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if err := s.scorer.CheckVotable(sig, identity.ID, now); err != nil {
		return nil, err
	}

	unlockTile := s.locks.Lock(tileLockKey(sig.TileKey))
	defer unlockTile()

	vote := domain.Vote{SignalID: signalID, VoterID: identity.ID, IsTrue: isTrue, CastAt: now}
	base := sig
	c, err := s.commit(ctx, "cast_vote", []string{sig.TileKey}, now, func(ctx context.Context, version uint64) error {
		if _, err := s.votes.GetVote(ctx, signalID, identity.ID); err == nil {
			return domain.NewConflictError(domain.ConflictAlreadyVoted, "remove your existing vote first")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get vote: %w", err)
		}

		if err := s.votes.CreateVote(ctx, vote); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.NewConflictError(domain.ConflictAlreadyVoted, "remove your existing vote first")
			}
			return fmt.Errorf("create vote: %w", err)
		}

		next, err := s.rescore(ctx, base, now, version)
		if err != nil {
			return err
		}
		next = s.scorer.NextStatus(next, now)
		if err := s.signals.UpdateSignal(ctx, next); err != nil {
			return fmt.Errorf("update signal: %w", err)
		}
		sig = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.votes.WithLabelValues("cast").Inc()
	s.log.DebugContext(ctx, "vote cast",
		slog.String("signal_id", signalID.String()),
		slog.Bool("is_true", isTrue),
		slog.String("status", string(sig.Status)),
	)

	s.notifier.VoteChanged(sig, vote, false)
	s.notifyTiles(c)
	return &VoteResult{Signal: sig, Summary: s.scorer.Summary(sig), Version: c.Version}, nil
}
