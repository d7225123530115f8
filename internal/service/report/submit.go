package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Signal  domain.Signal
	Version uint64
}

// Submit stores a new pending signal and folds it into its tile.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	identity, ok := ctxutil.IdentityFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	recent, err := s.guard.CheckSubmission(identity.ID, in.Location, now)
	if err != nil {
		s.metrics.rejections.WithLabelValues("submission").Inc()
		return nil, err
	}
	flags := s.guard.ScoreAnomalies(identity.ID, recent)
	for _, f := range flags {
		s.metrics.flagged.WithLabelValues(string(f)).Inc()
	}

	loc := s.guard.Blur(in.Location)
	expiresAt, voteWindowEnds := s.scorer.NewSignalTimes(now)
	sig := s.scorer.Recompute(domain.Signal{
		ID:                  uuid.New(),
		OwnerID:             identity.ID,
		Location:            loc,
		TileKey:             s.agg.TileKey(loc),
		Type:                in.Type,
		Severity:            in.Severity,
		Context:             in.Context,
		Status:              domain.SignalStatusPending,
		AbuseFlags:          flags,
		CreatedAt:           now,
		LastActivityAt:      now,
		ExpiresAt:           expiresAt,
		VoteWindowExpiresAt: voteWindowEnds,
	})

	unlock := s.locks.Lock(tileLockKey(sig.TileKey))
	c, err := s.commit(ctx, "submit", []string{sig.TileKey}, now, func(ctx context.Context, version uint64) error {
		sig.Version = version
		if err := s.signals.CreateSignal(ctx, sig); err != nil {
			return fmt.Errorf("create signal: %w", err)
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.metrics.submissions.WithLabelValues(string(sig.Type)).Inc()
	s.log.InfoContext(ctx, "signal submitted",
		slog.String("signal_id", sig.ID.String()),
		slog.String("tile", sig.TileKey),
		slog.Int("severity", sig.Severity),
		slog.Uint64("version", c.Version),
	)

	s.notifier.SignalCreated(sig)
	s.notifyTiles(c)
	return &SubmitResult{Signal: sig, Version: c.Version}, nil
}
