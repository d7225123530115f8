package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/wire"
)

type insightReader interface {
	TimeRisk() domain.TimeRisk
	RiskZones(ctx context.Context, area domain.Area) (domain.RiskZones, error)
	Clusters(ctx context.Context, area domain.Area) ([]domain.Cluster, error)
}

// InsightHandler serves heuristic reads over recent reports.
type InsightHandler struct {
	insight insightReader
	log     *slog.Logger
}

// NewInsightHandler creates an InsightHandler.
func NewInsightHandler(insight insightReader, logger *slog.Logger) *InsightHandler {
	return &InsightHandler{insight: insight, log: logger.With("handler", "insight")}
}

// TimeRisk handles GET /api/v1/intelligence/time-risk.
func (h *InsightHandler) TimeRisk(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wire.TimeRisk(h.insight.TimeRisk()))
}

// RiskZones handles GET /api/v1/intelligence/risk-zones. Without lat and
// lng every zone is graded.
func (h *InsightHandler) RiskZones(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r.URL.Query(), false)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	zones, err := h.insight.RiskZones(r.Context(), area)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RiskZones(zones))
}

// Clusters handles GET /api/v1/intelligence/clusters.
func (h *InsightHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r.URL.Query(), false)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	clusters, err := h.insight.Clusters(r.Context(), area)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Clusters(clusters))
}
