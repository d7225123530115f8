package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/heartmarshall/safety-pulse/internal/adapter/memory"
	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	signalrepo "github.com/heartmarshall/safety-pulse/internal/adapter/postgres/signal"
	tilerepo "github.com/heartmarshall/safety-pulse/internal/adapter/postgres/tile"
	voterepo "github.com/heartmarshall/safety-pulse/internal/adapter/postgres/vote"
	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

type signalRepo interface {
	GetSignal(ctx context.Context, id uuid.UUID) (domain.Signal, error)
	CreateSignal(ctx context.Context, sig domain.Signal) error
	UpdateSignal(ctx context.Context, sig domain.Signal) error
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
	ListTileSignals(ctx context.Context, tileKey string, activeAt time.Time) ([]domain.Signal, error)
	ListExpiring(ctx context.Context, now time.Time, limit int) ([]domain.Signal, error)
	ListChangedSignals(ctx context.Context, area domain.Area, r domain.VersionRange) ([]domain.Signal, error)
}

type voteRepo interface {
	GetVote(ctx context.Context, signalID uuid.UUID, voterID string) (domain.Vote, error)
	CreateVote(ctx context.Context, vote domain.Vote) error
	DeleteVote(ctx context.Context, signalID uuid.UUID, voterID string) error
	DeleteVotes(ctx context.Context, signalID uuid.UUID) (int, error)
	ListVotes(ctx context.Context, signalID uuid.UUID) ([]domain.Vote, error)
}

type tileRepo interface {
	UpsertTile(ctx context.Context, rec domain.TileRecord) error
	ListTiles(ctx context.Context) ([]domain.TileRecord, error)
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Signals signalRepo
	Votes   voteRepo
	Tiles   tileRepo
	Tx      txRunner
	// DB is nil for the memory backend.
	DB pinger
	// Collector exports backend statistics; nil for the memory backend.
	Collector prometheus.Collector
	lock      func(ctx context.Context) (func(), error)
	close     func()
}

// LockWriter claims the store for this process's writes. Versions are
// allocated in memory, so only one process may write to a database at a time.
// The returned func releases the claim.
func (s *Store) LockWriter(ctx context.Context) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	return s.lock(ctx)
}

// Close releases the backend's resources.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects the backend selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres",
			slog.Int("max_conns", int(cfg.Database.MaxConns)),
		)
		return &Store{
			Signals:   signalrepo.New(pool),
			Votes:     voterepo.New(pool),
			Tiles:     tilerepo.New(pool),
			Tx:        postgres.NewTxManager(pool),
			DB:        pool,
			Collector: postgres.NewPoolCollector(pool),
			lock: func(ctx context.Context) (func(), error) {
				l, err := postgres.AcquireWriterLock(ctx, pool)
				if err != nil {
					return nil, err
				}
				return func() {
					if err := l.Release(context.Background()); err != nil {
						logger.Warn("writer lock release failed", slog.String("error", err.Error()))
					}
				}, nil
			},
			close: pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewMemoryStore returns a Store backed by one in-process memory.Store.
func NewMemoryStore() *Store {
	mem := memory.NewStore()
	return &Store{
		Signals: mem,
		Votes:   mem,
		Tiles:   mem,
		Tx:      memory.NewTxManager(),
	}
}
