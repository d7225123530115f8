package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

type snapshotter interface {
	Snapshot(ctx context.Context, area domain.Area) (api.PulseResponse, error)
	Stats(area domain.Area) api.PulseStats
}

// PulseHandler serves the aggregated tile map.
type PulseHandler struct {
	pulses snapshotter
	log    *slog.Logger
}

// NewPulseHandler creates a PulseHandler.
func NewPulseHandler(pulses snapshotter, logger *slog.Logger) *PulseHandler {
	return &PulseHandler{pulses: pulses, log: logger.With("handler", "pulse")}
}

// Pulse handles GET /api/v1/pulse and GET /api/v1/pulses/active. Without
// lat and lng every live tile is returned.
func (h *PulseHandler) Pulse(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r.URL.Query(), false)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	resp, err := h.pulses.Snapshot(r.Context(), area)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/v1/pulses/stats.
func (h *PulseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r.URL.Query(), false)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.pulses.Stats(area))
}
