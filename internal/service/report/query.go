package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

// GetSignal returns one signal.
func (s *Service) GetSignal(ctx context.Context, signalID uuid.UUID) (domain.Signal, error) {
	return s.signals.GetSignal(ctx, signalID)
}

// GetSummary returns the vote summary of a signal.
func (s *Service) GetSummary(ctx context.Context, signalID uuid.UUID) (trust.Summary, error) {
	sig, err := s.signals.GetSignal(ctx, signalID)
	if err != nil {
		return trust.Summary{}, err
	}
	return s.scorer.Summary(sig), nil
}

// VoteCheck tells the caller whether and how they voted.
type VoteCheck struct {
	HasVoted bool
	Vote     *domain.Vote
}

// CheckVote returns the caller's vote on a signal, if any.
func (s *Service) CheckVote(ctx context.Context, signalID uuid.UUID) (*VoteCheck, error) {
	identity, ok := ctxutil.IdentityFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if _, err := s.signals.GetSignal(ctx, signalID); err != nil {
		return nil, err
	}

	v, err := s.votes.GetVote(ctx, signalID, identity.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return &VoteCheck{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return &VoteCheck{HasVoted: true, Vote: &v}, nil
}

// ListReports returns active signals around a point created within the
// requested window, newest first.
func (s *Service) ListReports(ctx context.Context, in ListInput) ([]domain.Signal, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	window, _ := in.TimeWindow.Duration()
	after := now.Add(-window)

	limit := in.Limit
	if limit == 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	return s.signals.ListSignals(ctx, domain.SignalFilter{
		Area:         in.Area,
		CreatedAfter: &after,
		ActiveAt:     &now,
		Limit:        limit,
	})
}

// Pulses returns the current tiles overlapping area.
func (s *Service) Pulses(_ context.Context, area domain.Area) pulse.Snapshot {
	return s.cache.Snapshot(area, s.now())
}
