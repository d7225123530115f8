package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const pingTimeout = 3 * time.Second

type dbPinger interface {
	Ping(ctx context.Context) error
}

type versioner interface {
	Version() uint64
}

type clientCounter interface {
	Count() int
}

// HealthHandler serves the liveness, readiness and health checks. A nil db
// means the memory store is in use and there is nothing to ping; sync and
// clients are optional.
type HealthHandler struct {
	db      dbPinger
	sync    versioner
	clients clientCounter
	version string
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db dbPinger, sync versioner, clients clientCounter, version string) *HealthHandler {
	return &HealthHandler{db: db, sync: sync, clients: clients, version: version, now: time.Now}
}

// HealthResponse is the body of every health check.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of one dependency.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Live always answers 200 while the process serves HTTP.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: h.now()})
}

// Ready answers 503 while the signal store is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	db := h.database(r.Context())
	writeJSON(w, statusCode(db.Status), HealthResponse{Status: db.Status, Timestamp: h.now()})
}

// Health reports the store, the sync version and connected realtime clients.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	db := h.database(r.Context())
	components := map[string]CompStatus{"database": db}
	if h.sync != nil {
		components["sync"] = CompStatus{Status: "ok", Detail: fmt.Sprintf("version %d", h.sync.Version())}
	}
	if h.clients != nil {
		components["realtime"] = CompStatus{Status: "ok", Detail: fmt.Sprintf("%d clients", h.clients.Count())}
	}

	writeJSON(w, statusCode(db.Status), HealthResponse{
		Status:     db.Status,
		Version:    h.version,
		Components: components,
		Timestamp:  h.now(),
	})
}

func (h *HealthHandler) database(ctx context.Context) CompStatus {
	if h.db == nil {
		return CompStatus{Status: "ok", Detail: "memory"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		return CompStatus{Status: "down"}
	}
	return CompStatus{Status: "ok", Latency: time.Since(start).String()}
}

func statusCode(status string) int {
	if status == "ok" {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
