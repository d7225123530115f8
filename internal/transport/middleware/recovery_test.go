package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/safety-pulse/pkg/api"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

func TestRecovery_PassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	Recovery(logger)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/report", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("tile recompute exploded")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/x/vote", nil)
	req = req.WithContext(ctxutil.WithRequestID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()
	Recovery(logger)(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Code)

	logged := buf.String()
	assert.Contains(t, logged, "panic recovered")
	assert.Contains(t, logged, "tile recompute exploded")
	assert.Contains(t, logged, "request_id=req-42")
	assert.Contains(t, logged, "path=/api/v1/reports/x/vote")
}

func TestRecovery_RepanicsOnAbortHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Recovery(logger)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
