package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/realtime"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

type syncGateway interface {
	Poll(ctx context.Context, area domain.Area, cur realtime.Cursor) (*api.PollResponse, error)
	Delta(area domain.Area, since uint64) api.PulseDelta
	Version() uint64
}

type recentEvents interface {
	Recent(limit int, typ string) []api.ServerMessage
}

// Bounds of the limit parameter of GET /api/v1/realtime/events.
const (
	defaultEventLimit = 50
	maxEventLimit     = 100
)

type connectionStats interface {
	Count() int
	CountByTopic() map[string]int
}

// RealtimeHandler serves the polling side of synchronization.
type RealtimeHandler struct {
	gateway syncGateway
	stats   connectionStats
	events  recentEvents
	log     *slog.Logger
	now     func() time.Time
}

// NewRealtimeHandler creates a RealtimeHandler.
func NewRealtimeHandler(gateway syncGateway, stats connectionStats, events recentEvents, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		gateway: gateway,
		stats:   stats,
		events:  events,
		log:     logger.With("handler", "realtime"),
		now:     time.Now,
	}
}

// Updates handles GET /api/v1/realtime/updates. The cursor is either
// version (preferred) or since, an RFC 3339 timestamp.
func (h *RealtimeHandler) Updates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	area, err := parseArea(q, false)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var cur realtime.Cursor
	if cur.Version, err = optionalUint(q, "version"); err != nil {
		handleError(h.log, w, r, err)
		return
	}
	if cur.Since, err = optionalTime(q, "since"); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	resp, err := h.gateway.Poll(r.Context(), area, cur)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// PulseDelta handles GET /api/v1/realtime/pulse-delta.
func (h *RealtimeHandler) PulseDelta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	area, err := parseArea(q, false)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	since, err := optionalUint(q, "version")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var v uint64
	if since != nil {
		v = *since
	}
	writeJSON(w, http.StatusOK, h.gateway.Delta(area, v))
}

// Status handles GET /api/v1/realtime/status.
func (h *RealtimeHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.RealtimeStatus{
		Status:      "ok",
		Connections: h.stats.Count(),
		ByTopic:     h.stats.CountByTopic(),
		Version:     h.gateway.Version(),
		ServerTime:  h.now().UTC(),
	})
}

// Events handles GET /api/v1/realtime/events: the latest pushed events,
// newest first, optionally filtered by type.
func (h *RealtimeHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := optionalInt(q, "limit")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	switch {
	case limit == 0:
		limit = defaultEventLimit
	case limit > maxEventLimit:
		handleError(h.log, w, r, domain.NewValidationError("limit", fmt.Sprintf("must be at most %d", maxEventLimit)))
		return
	}
	typ := q.Get("type")
	if typ != "" && !api.IsEventType(typ) {
		handleError(h.log, w, r, domain.NewValidationError("type", "unknown event type"))
		return
	}

	events := h.events.Recent(limit, typ)
	writeJSON(w, http.StatusOK, api.RecentEvents{Events: events, Count: len(events)})
}
