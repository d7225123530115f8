package abuse

import (
	"context"
	"log/slog"
	"time"
)

// Run prunes idle identities every JanitorInterval until ctx is done.
func (g *Guard) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := g.Prune(now); n > 0 {
				g.log.Debug("abuse history pruned", slog.Int("identities", n))
			}
		}
	}
}

// Prune forgets identities that have no history left that could affect a
// decision at now. It returns the number of identities removed.
func (g *Guard) Prune(now time.Time) int {
	idle := max(g.historyWindow(), g.cfg.VoteWindow, g.cfg.DeleteCooldown)
	removed := 0
	g.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		stale := now.Sub(e.lastSeen) > idle
		e.mu.Unlock()
		if stale {
			g.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
