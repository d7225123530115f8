package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestLimiter(t *testing.T, clock *time.Time) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(time.Minute)
	t.Cleanup(rl.Stop)
	rl.now = func() time.Time { return *clock }
	return rl
}

func requestAs(id ctxutil.Identity, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.RemoteAddr = addr
	if id.ID != "" {
		req = req.WithContext(ctxutil.WithIdentity(req.Context(), id))
	}
	return req
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := newTestLimiter(t, &clock).Limit(10, 100)(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(ctxutil.Identity{ID: "device:a"}, "1.2.3.4:1234"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := newTestLimiter(t, &clock).Limit(5, 100)(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(ctxutil.Identity{ID: "device:a"}, "1.2.3.4:1234"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(ctxutil.Identity{ID: "device:a"}, "1.2.3.4:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 12, retry, 1)
	assert.JSONEq(t, `{"error":"rate limit exceeded","code":"rate_limited","retry_after_seconds":`+rec.Header().Get("Retry-After")+`}`, rec.Body.String())
}

func TestRateLimiter_IdentitiesIndependent(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := newTestLimiter(t, &clock).Limit(2, 100)(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs(ctxutil.Identity{ID: "device:a"}, "1.1.1.1:1"))
	}

	// Same address, different device.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(ctxutil.Identity{ID: "device:b"}, "1.1.1.1:1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_AuthenticatedBudget(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := newTestLimiter(t, &clock).Limit(1, 3)(okHandler())
	user := ctxutil.Identity{ID: "user:a", Authenticated: true}

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(user, "1.1.1.1:1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(user, "1.1.1.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := newTestLimiter(t, &clock).Limit(60, 100)(okHandler())

	for i := 0; i < 60; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs(ctxutil.Identity{}, "3.3.3.3:1234"))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(ctxutil.Identity{}, "3.3.3.3:1234"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	clock = clock.Add(1100 * time.Millisecond)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(ctxutil.Identity{}, "3.3.3.3:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_EvictsIdle(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &clock)
	handler := rl.Limit(5, 5)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestAs(ctxutil.Identity{ID: "device:a"}, "1.1.1.1:1"))
	require.Equal(t, 1, rl.Size())

	rl.evictIdle(clock.Add(5 * time.Minute))
	assert.Equal(t, 1, rl.Size())
	rl.evictIdle(clock.Add(11 * time.Minute))
	assert.Zero(t, rl.Size())
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	rl := NewRateLimiter(time.Millisecond)
	rl.Stop()
	rl.Stop()
}
