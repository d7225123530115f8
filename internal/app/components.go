package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/heartmarshall/safety-pulse/internal/auth"
	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/realtime"
	"github.com/heartmarshall/safety-pulse/internal/service/abuse"
	"github.com/heartmarshall/safety-pulse/internal/service/insight"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
	"github.com/heartmarshall/safety-pulse/internal/service/report"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/internal/transport/middleware"
)

// Components is the wired object graph shared by the HTTP server and the
// background workers.
type Components struct {
	Config   *config.Config
	Log      *slog.Logger
	Registry *prometheus.Registry
	Store    *Store

	Guard    *abuse.Guard
	Scorer   *trust.Scorer
	Cache    *pulse.Cache
	Reports  *report.Service
	Insight  *insight.Service
	Hub      *realtime.Hub
	Events   *realtime.EventLog
	Gateway  *realtime.Gateway
	Alerts   *realtime.AlertEvaluator
	Metrics  *realtime.Metrics
	HTTP     *middleware.HTTPMetrics
	Resolver *auth.Resolver
	Tokens   *auth.JWTManager
}

// NewComponents wires services over store and warms the pulse cache from
// persisted tiles.
func NewComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *Store) (*Components, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if store.Collector != nil {
		reg.MustRegister(store.Collector)
	}

	guard := abuse.NewGuard(cfg.Abuse, logger)
	scorer := trust.NewScorer(cfg.Trust, guard)
	cache := pulse.NewCache(pulse.NewAggregator(cfg.Pulse), cfg.Pulse.MaxTombstones)

	reports := report.NewService(logger, store.Signals, store.Votes, store.Tiles, store.Tx,
		guard, scorer, cache, report.NewMetrics(reg))

	rtMetrics := realtime.NewMetrics(reg)
	hub := realtime.NewHub(logger, rtMetrics)
	events := realtime.NewEventLog(cfg.Realtime.EventLogSize)
	reports.SetNotifier(realtime.NewPublisher(logger, hub, scorer, cache.Aggregator(), events))

	if err := reports.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warm pulse cache: %w", err)
	}

	hasher := auth.NewIdentityHasher(cfg.Auth.IdentitySalt)
	var tokens *auth.JWTManager
	resolver := auth.NewResolver(nil, hasher)
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
		resolver = auth.NewResolver(tokens, hasher)
	}

	return &Components{
		Config:   cfg,
		Log:      logger,
		Registry: reg,
		Store:    store,
		Guard:    guard,
		Scorer:   scorer,
		Cache:    cache,
		Reports:  reports,
		Insight:  insight.NewService(cfg.Insight, store.Signals, logger),
		Hub:      hub,
		Events:   events,
		Gateway:  realtime.NewGateway(cache, store.Signals, scorer.ConfidenceLabel, rtMetrics),
		Alerts:   realtime.NewAlertEvaluator(store.Signals, cache, cfg.Realtime.AlertRadiusKm, rtMetrics),
		Metrics:  rtMetrics,
		HTTP:     middleware.NewHTTPMetrics(reg),
		Resolver: resolver,
		Tokens:   tokens,
	}, nil
}
