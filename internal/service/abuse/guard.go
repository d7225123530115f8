// Package abuse rate-limits submissions, votes and deletions per identity and
// flags suspicious submission patterns. The heuristics are deliberately simple
// so that every flag can be explained to the affected reporter.
package abuse

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// Submission is one accepted report attempt of an identity.
type Submission struct {
	Location domain.Location
	At       time.Time
}

// Guard keeps per-identity budgets and history in memory.
type Guard struct {
	cfg     config.AbuseConfig
	log     *slog.Logger
	entries sync.Map // map[string]*entry
	rand    func() float64
}

type entry struct {
	mu          sync.Mutex
	submitLimit *rate.Limiter
	voteLimit   *rate.Limiter
	submissions []Submission // within max(SubmissionWindow, BurstWindow)
	lastDelete  time.Time
	lastSeen    time.Time
}

// NewGuard creates a Guard. Run the janitor with Run to bound memory.
func NewGuard(cfg config.AbuseConfig, log *slog.Logger) *Guard {
	return &Guard{
		cfg:  cfg,
		log:  log.With("service", "abuse"),
		rand: rand.Float64,
	}
}

func (g *Guard) entry(identity string) *entry {
	val, ok := g.entries.Load(identity)
	if !ok {
		val, _ = g.entries.LoadOrStore(identity, &entry{
			submitLimit: newLimiter(g.cfg.MaxSubmissions, g.cfg.SubmissionWindow),
			voteLimit:   newLimiter(g.cfg.MaxVotes, g.cfg.VoteWindow),
		})
	}
	return val.(*entry)
}

// newLimiter allows n events at once and refills the budget over window.
func newLimiter(n int, window time.Duration) *rate.Limiter {
	if n <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
}

// take consumes one token at now, or returns how long until one is available.
func take(lim *rate.Limiter, now time.Time) (time.Duration, bool) {
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return 0, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// CheckSubmission enforces the submission budget. An allowed submission is
// recorded immediately, so concurrent attempts cannot overshoot the budget.
// It returns the identity's recent submissions including the new one.
func (g *Guard) CheckSubmission(identity string, loc domain.Location, now time.Time) ([]Submission, error) {
	e := g.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.submissions = trimSubmissions(e.submissions, now.Add(-g.historyWindow()))
	e.lastSeen = now

	if retry, ok := take(e.submitLimit, now); !ok {
		g.log.Info("submission rejected", slog.String("identity", identity), slog.Duration("retry_after", retry))
		return nil, &domain.AbuseRejection{Reason: "too many reports", RetryAfter: retry}
	}

	e.submissions = append(e.submissions, Submission{Location: loc, At: now})
	out := make([]Submission, len(e.submissions))
	copy(out, e.submissions)
	return out, nil
}

// CheckVote enforces the vote budget and consumes one vote from it.
func (g *Guard) CheckVote(identity string, now time.Time) error {
	e := g.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSeen = now
	if retry, ok := take(e.voteLimit, now); !ok {
		return &domain.AbuseRejection{Reason: "too many votes", RetryAfter: retry}
	}
	return nil
}

// CheckDeletion rejects an owner deletion within DeleteCooldown of the previous one.
func (g *Guard) CheckDeletion(identity string, now time.Time) error {
	val, ok := g.entries.Load(identity)
	if !ok {
		return nil
	}
	e := val.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastDelete.IsZero() {
		return nil
	}
	next := e.lastDelete.Add(g.cfg.DeleteCooldown)
	if now.Before(next) {
		return &domain.AbuseRejection{Reason: "deletion cooldown", RetryAfter: next.Sub(now)}
	}
	return nil
}

// RecordDeletion starts the deletion cooldown for identity.
func (g *Guard) RecordDeletion(identity string, now time.Time) {
	e := g.entry(identity)
	e.mu.Lock()
	e.lastDelete = now
	e.lastSeen = now
	e.mu.Unlock()
}

// Recent returns the identity's submissions still inside the history window.
func (g *Guard) Recent(identity string, now time.Time) []Submission {
	val, ok := g.entries.Load(identity)
	if !ok {
		return nil
	}
	e := val.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	return trimSubmissions(append([]Submission(nil), e.submissions...), now.Add(-g.historyWindow()))
}

func (g *Guard) historyWindow() time.Duration {
	return max(g.cfg.SubmissionWindow, g.cfg.BurstWindow)
}

func trimSubmissions(s []Submission, cutoff time.Time) []Submission {
	i := 0
	for i < len(s) && !s[i].At.After(cutoff) {
		i++
	}
	return s[i:]
}
