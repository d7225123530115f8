package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heartmarshall/safety-pulse/internal/transport/middleware"
	"github.com/heartmarshall/safety-pulse/internal/transport/rest"
	"github.com/heartmarshall/safety-pulse/internal/transport/ws"
)

// NewRouter builds the HTTP handler tree. Health checks and /metrics bypass
// identity and rate limiting; everything under /api/ goes through the
// full middleware chain. A nil limiter turns rate limiting off.
func NewRouter(c *Components, limiter *middleware.RateLimiter) http.Handler {
	cfg := c.Config

	reports := rest.NewReportHandler(c.Reports, c.Scorer.ConfidenceLabel, c.Log)
	pulses := rest.NewPulseHandler(c.Gateway, c.Log)
	realtime := rest.NewRealtimeHandler(c.Gateway, c.Hub, c.Events, c.Log)
	insight := rest.NewInsightHandler(c.Insight, c.Log)
	health := rest.NewHealthHandler(c.Store.DB, c.Gateway, c.Hub, BuildVersion())
	push := ws.NewHandler(c.Hub, c.Alerts, c.Resolver, c.Gateway, c.Metrics, cfg.Realtime, c.Log)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/report", reports.Submit)
	api.HandleFunc("GET /api/v1/reports", reports.List)
	api.HandleFunc("POST /api/v1/reports/{id}/vote", reports.Vote)
	api.HandleFunc("DELETE /api/v1/reports/{id}/vote", reports.RemoveVote)
	api.HandleFunc("GET /api/v1/reports/{id}/votes", reports.Votes)
	api.HandleFunc("GET /api/v1/reports/{id}/vote/check", reports.CheckVote)
	api.HandleFunc("DELETE /api/v1/reports/{id}", reports.Delete)

	api.HandleFunc("GET /api/v1/pulse", pulses.Pulse)
	api.HandleFunc("GET /api/v1/pulses/active", pulses.Pulse)
	api.HandleFunc("GET /api/v1/pulses/stats", pulses.Stats)

	api.Handle("GET /api/v1/realtime/ws", push)
	api.HandleFunc("GET /api/v1/realtime/updates", realtime.Updates)
	api.HandleFunc("GET /api/v1/realtime/pulse-delta", realtime.PulseDelta)
	api.HandleFunc("GET /api/v1/realtime/status", realtime.Status)
	api.HandleFunc("GET /api/v1/realtime/events", realtime.Events)

	api.HandleFunc("GET /api/v1/intelligence/time-risk", insight.TimeRisk)
	api.HandleFunc("GET /api/v1/intelligence/risk-zones", insight.RiskZones)
	api.HandleFunc("GET /api/v1/intelligence/clusters", insight.Clusters)

	var limit middleware.Middleware
	if limiter != nil {
		limit = limiter.Limit(cfg.RateLimit.AnonymousPerMinute, cfg.RateLimit.AuthenticatedPerMinute)
	}
	chain := middleware.Chain(
		middleware.RequestID,
		middleware.Recovery(c.Log),
		c.HTTP.Middleware(api),
		middleware.CORS(cfg.CORS),
		middleware.Identity(c.Resolver),
		middleware.Logger(c.Log),
		limit,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", health.Live)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry}))
	mux.Handle("/api/", chain(api))

	return mux
}
