package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/transport/middleware"
)

// Run starts the HTTP server together with the expiry sweeper and the abuse
// janitor, and blocks until ctx is cancelled or one of them fails.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("store", cfg.Store.Driver),
	)

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	unlock, err := store.LockWriter(ctx)
	if err != nil {
		return fmt.Errorf("claim store: %w", err)
	}
	defer unlock()

	c, err := NewComponents(ctx, cfg, logger, store)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.CleanupInterval)
	defer limiter.Stop()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      NewRouter(c, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return c.Reports.RunExpiry(gctx, cfg.Realtime.ExpiryInterval)
	})
	g.Go(func() error {
		return c.Guard.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown.
		c.Hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Migrate applies pending database migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	logger := NewLogger(cfg.Log)
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	applied, err := postgres.MigrateDSN(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	for _, m := range applied {
		logger.Info("migration applied", slog.Int64("version", m.Version), slog.String("source", m.Source))
	}
	logger.Info("migrations up to date", slog.Int("applied", len(applied)))
	return nil
}

// Expire runs one expiry sweep and returns the number of expired signals.
// It refuses to run while a server owns the database; the server's own
// sweeper covers that case.
func Expire(ctx context.Context, cfg *config.Config) (int, error) {
	logger := NewLogger(cfg.Log)

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	unlock, err := store.LockWriter(ctx)
	if errors.Is(err, postgres.ErrWriterLocked) {
		return 0, fmt.Errorf("expire: a running server owns the database and sweeps expiry itself: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("claim store: %w", err)
	}
	defer unlock()

	c, err := NewComponents(ctx, cfg, logger, store)
	if err != nil {
		return 0, err
	}

	n, err := c.Reports.ExpireDue(ctx)
	if err != nil {
		return 0, fmt.Errorf("expire: %w", err)
	}
	logger.Info("expiry sweep finished", slog.Int("expired", n))
	return n, nil
}
