// Package report implements the signal write pipeline: submission, voting,
// deletion and expiry. Each mutation is one atomic unit covering the signal,
// its votes, the affected tile and the cache version bump.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/abuse"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
)

var tracer = otel.Tracer("safetypulse.report")

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type signalStore interface {
	GetSignal(ctx context.Context, id uuid.UUID) (domain.Signal, error)
	CreateSignal(ctx context.Context, sig domain.Signal) error
	UpdateSignal(ctx context.Context, sig domain.Signal) error
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
	ListTileSignals(ctx context.Context, tileKey string, activeAt time.Time) ([]domain.Signal, error)
	ListExpiring(ctx context.Context, now time.Time, limit int) ([]domain.Signal, error)
}

type voteStore interface {
	GetVote(ctx context.Context, signalID uuid.UUID, voterID string) (domain.Vote, error)
	CreateVote(ctx context.Context, vote domain.Vote) error
	DeleteVote(ctx context.Context, signalID uuid.UUID, voterID string) error
	DeleteVotes(ctx context.Context, signalID uuid.UUID) (int, error)
	ListVotes(ctx context.Context, signalID uuid.UUID) ([]domain.Vote, error)
}

type tileStore interface {
	UpsertTile(ctx context.Context, rec domain.TileRecord) error
	ListTiles(ctx context.Context) ([]domain.TileRecord, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type abuseGuard interface {
	CheckSubmission(identity string, loc domain.Location, now time.Time) ([]abuse.Submission, error)
	ScoreAnomalies(identity string, recent []abuse.Submission) []domain.AbuseFlag
	CheckVote(identity string, now time.Time) error
	CheckDeletion(identity string, now time.Time) error
	RecordDeletion(identity string, now time.Time)
	Blur(loc domain.Location) domain.Location
}

// notifier receives committed changes. Implementations must not block.
type notifier interface {
	SignalCreated(sig domain.Signal)
	SignalDeleted(sig domain.Signal)
	VoteChanged(sig domain.Signal, vote domain.Vote, removed bool)
	TilesChanged(tiles []domain.PulseTile, removed []string, version uint64)
	SpikeDetected(spike domain.Spike)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the report business logic.
type Service struct {
	log      *slog.Logger
	signals  signalStore
	votes    voteStore
	tiles    tileStore
	tx       txManager
	guard    abuseGuard
	scorer   *trust.Scorer
	agg      *pulse.Aggregator
	cache    *pulse.Cache
	notifier notifier
	metrics  *Metrics
	locks    *keyLock
	now      func() time.Time
}

// NewService creates a new report service.
func NewService(
	logger *slog.Logger,
	signals signalStore,
	votes voteStore,
	tiles tileStore,
	tx txManager,
	guard abuseGuard,
	scorer *trust.Scorer,
	cache *pulse.Cache,
	m *Metrics,
) *Service {
	return &Service{
		log:      logger.With("service", "report"),
		signals:  signals,
		votes:    votes,
		tiles:    tiles,
		tx:       tx,
		guard:    guard,
		scorer:   scorer,
		agg:      cache.Aggregator(),
		cache:    cache,
		notifier: nopNotifier{},
		metrics:  m,
		locks:    newKeyLock(),
		now:      time.Now,
	}
}

// SetNotifier injects the realtime publisher.
func (s *Service) SetNotifier(n notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

type nopNotifier struct{}

func (nopNotifier) SignalCreated(domain.Signal) {}
func (nopNotifier) SignalDeleted(domain.Signal) {}
func (nopNotifier) VoteChanged(domain.Signal, domain.Vote, bool) {}
func (nopNotifier) TilesChanged([]domain.PulseTile, []string, uint64) {}
func (nopNotifier) SpikeDetected(domain.Spike) {}

// rescore recomputes base from the votes stored for it inside the current
// transaction. base must be the signal as read before the transaction began,
// so a retried attempt starts from the same state.
func (s *Service) rescore(ctx context.Context, base domain.Signal, now time.Time, version uint64) (domain.Signal, error) {
	votes, err := s.votes.ListVotes(ctx, base.ID)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("list votes: %w", err)
	}
	next := s.scorer.RecomputeFromVotes(base, votes)
	next.LastActivityAt = now
	next.Version = version
	return next, nil
}

func signalLockKey(id uuid.UUID) string { return "signal:" + id.String() }
func tileLockKey(key string) string { return "tile:" + key }
