package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/heartmarshall/safety-pulse/pkg/api"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter applies per-identity token buckets. Authenticated callers get
// their own budget; anonymous callers are keyed by device or address.
type RateLimiter struct {
	limiters sync.Map // map[string]*limiterEntry
	stop     chan struct{}
	once     sync.Once
	now      func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

// NewRateLimiter creates a rate limiter with background cleanup.
// Call Stop() on shutdown.
func NewRateLimiter(cleanupInterval time.Duration) *RateLimiter {
	rl := &RateLimiter{stop: make(chan struct{}), now: time.Now}
	go rl.cleanup(cleanupInterval)
	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Limit returns middleware allowing anonymousPerMinute requests per
// anonymous identity and authenticatedPerMinute per signed-in user. It must
// run after Identity; requests without identity are keyed by address.
func (rl *RateLimiter) Limit(anonymousPerMinute, authenticatedPerMinute int) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, perMinute := "addr:"+r.RemoteAddr, anonymousPerMinute
			if id, ok := ctxutil.IdentityFromCtx(r.Context()); ok {
				key = id.ID
				if id.Authenticated {
					perMinute = authenticatedPerMinute
				}
			}
			if perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			now := rl.now()
			res := rl.limiter(key, perMinute, now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
				res.CancelAt(now)
				retry := int(math.Ceil(max(delay, time.Second).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, api.ErrorResponse{
					Error:             "rate limit exceeded",
					Code:              "rate_limited",
					RetryAfterSeconds: retry,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiter(key string, perMinute int, now time.Time) *rate.Limiter {
	key = key + "|" + strconv.Itoa(perMinute)
	val, ok := rl.limiters.Load(key)
	if !ok {
		e := &limiterEntry{lim: rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)}
		val, _ = rl.limiters.LoadOrStore(key, e)
	}
	e := val.(*limiterEntry)
	e.lastSeen.Store(now.UnixNano())
	return e.lim
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(rl.now())
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		e := value.(*limiterEntry)
		if now.Sub(time.Unix(0, e.lastSeen.Load())) > limiterIdleTTL {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Size returns the number of tracked buckets.
func (rl *RateLimiter) Size() int {
	n := 0
	rl.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
