package syncclient

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// SpikeFlagDuration is how long the spike flag stays up after the last
// spike_detected event.
const SpikeFlagDuration = 5 * time.Second

// Change describes what one applied Update altered. The Agent also sends a
// Change with only State and Stale set when the transport state moves.
type Change struct {
	Version        uint64
	Reset          bool
	ChangedTiles   []string
	RemovedTiles   []string
	ChangedReports []uuid.UUID
	RemovedReports []uuid.UUID
	Spike          *api.Spike
	Alert          *api.LocationAlert

	State State
	Stale bool
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return !c.Reset && len(c.ChangedTiles) == 0 && len(c.RemovedTiles) == 0 &&
		len(c.ChangedReports) == 0 && len(c.RemovedReports) == 0 &&
		c.Spike == nil && c.Alert == nil
}

// Mirror is the local copy of the tiles and reports visible in one area.
// Every item is keyed by its own server version, so applying an update twice
// or out of order never moves an item backwards. Removals leave a tombstone
// with the removal version so a late copy of the removed item is ignored.
type Mirror struct {
	mu sync.RWMutex

	area    Area
	version uint64
	cursor  uint64

	tiles          map[string]api.PulseTile
	tileTombstones map[string]uint64
	reports        map[uuid.UUID]api.Report
	reportRemoved  map[uuid.UUID]uint64

	spikeAt   time.Time
	lastSpike *api.Spike
	lastAlert *api.LocationAlert
}

// NewMirror creates an empty mirror for area.
func NewMirror(area Area) *Mirror {
	m := &Mirror{}
	m.Reset(area)
	return m
}

// Reset forgets everything and starts over for area.
func (m *Mirror) Reset(area Area) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.area = area
	m.version, m.cursor = 0, 0
	m.tiles = make(map[string]api.PulseTile)
	m.tileTombstones = make(map[string]uint64)
	m.reports = make(map[uuid.UUID]api.Report)
	m.reportRemoved = make(map[uuid.UUID]uint64)
	m.spikeAt, m.lastSpike, m.lastAlert = time.Time{}, nil, nil
}

// Apply merges u and returns what changed. Re-applying an update that was
// already applied returns an empty Change.
func (m *Mirror) Apply(u Update) Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Change
	if u.Reset {
		if u.Version < m.cursor {
			return c
		}
		m.tiles = make(map[string]api.PulseTile)
		m.tileTombstones = make(map[string]uint64)
		m.reports = make(map[uuid.UUID]api.Report)
		m.reportRemoved = make(map[uuid.UUID]uint64)
		c.Reset = true
	}

	for _, t := range u.Tiles {
		if m.applyTile(t) {
			c.ChangedTiles = append(c.ChangedTiles, t.TileID)
		}
	}
	for _, key := range u.RemovedTiles {
		if m.removeTile(key, u.Version) {
			c.RemovedTiles = append(c.RemovedTiles, key)
		}
	}
	for _, r := range u.Reports {
		changed, removed := m.applyReport(r)
		switch {
		case changed:
			c.ChangedReports = append(c.ChangedReports, r.ID)
		case removed:
			c.RemovedReports = append(c.RemovedReports, r.ID)
		}
	}
	for _, v := range u.Votes {
		if m.applyVote(v) {
			c.ChangedReports = append(c.ChangedReports, v.SignalID)
		}
	}
	for _, id := range u.DeletedReports {
		if m.removeReport(id, u.Version) {
			c.RemovedReports = append(c.RemovedReports, id)
		}
	}
	for i := range u.Spikes {
		sp := u.Spikes[i]
		if m.lastSpike != nil && sp.Version <= m.lastSpike.Version {
			continue
		}
		if !m.area.contains(sp.Latitude, sp.Longitude, 0) {
			continue
		}
		m.lastSpike, m.spikeAt = &sp, u.ReceivedAt
		c.Spike = &sp
	}
	if u.Alert != nil {
		a := *u.Alert
		m.lastAlert = &a
		c.Alert = &a
	}

	m.version = max(m.version, u.Version)
	if u.Checkpoint {
		m.cursor = max(m.cursor, u.Version)
	}
	c.Version = m.version
	return c
}

func (m *Mirror) applyTile(t api.PulseTile) bool {
	if v, ok := m.tileTombstones[t.TileID]; ok && v >= t.Version {
		return false
	}
	if cur, ok := m.tiles[t.TileID]; ok && cur.Version >= t.Version {
		return false
	}
	if !m.area.contains(t.Latitude, t.Longitude, t.Radius/1000) {
		return false
	}
	m.tiles[t.TileID] = t
	delete(m.tileTombstones, t.TileID)
	return true
}

func (m *Mirror) removeTile(key string, version uint64) bool {
	cur, ok := m.tiles[key]
	if ok && cur.Version > version {
		return false
	}
	m.tileTombstones[key] = max(m.tileTombstones[key], version)
	if !ok {
		return false
	}
	delete(m.tiles, key)
	return true
}

// applyReport returns (changed, removed). A report that left the active
// set or the area is removed.
func (m *Mirror) applyReport(r api.Report) (bool, bool) {
	if v, ok := m.reportRemoved[r.ID]; ok && v >= r.Version {
		return false, false
	}
	if cur, ok := m.reports[r.ID]; ok && cur.Version >= r.Version {
		return false, false
	}
	if r.Status == "deleted" || r.Status == "expired" || !m.area.contains(r.Latitude, r.Longitude, 0) {
		return false, m.removeReport(r.ID, r.Version)
	}
	m.reports[r.ID] = r
	delete(m.reportRemoved, r.ID)
	return true, false
}

func (m *Mirror) applyVote(v api.VoteSummary) bool {
	r, ok := m.reports[v.SignalID]
	if !ok || r.Version >= v.Version {
		return false
	}
	r.TrueVotes, r.FalseVotes = v.TrueVotes, v.FalseVotes
	r.TrustScore, r.ConfidenceScore = v.TrustScore, v.ConfidenceScore
	r.Confidence = v.Confidence
	if v.Status != "" {
		r.Status = v.Status
	}
	r.Version = v.Version
	m.reports[v.SignalID] = r
	return true
}

func (m *Mirror) removeReport(id uuid.UUID, version uint64) bool {
	cur, ok := m.reports[id]
	if ok && cur.Version > version {
		return false
	}
	m.reportRemoved[id] = max(m.reportRemoved[id], version)
	if !ok {
		return false
	}
	delete(m.reports, id)
	return true
}

// Area returns the area the mirror follows.
func (m *Mirror) Area() Area {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.area
}

// Version returns the highest server version seen.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Cursor returns the version to resume from: the highest version received
// as a consistent cut.
func (m *Mirror) Cursor() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

// Tiles returns the aggregated view, sorted by tile id.
func (m *Mirror) Tiles() []api.PulseTile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.PulseTile, 0, len(m.tiles))
	for _, t := range m.tiles {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b api.PulseTile) int { return strings.Compare(a.TileID, b.TileID) })
	return out
}

// Signals returns individual reports when zoom reaches detailThreshold and
// nil otherwise. Reports past their expiry at now are left out. The newest
// report comes first.
func (m *Mirror) Signals(zoom, detailThreshold float64, now time.Time) []api.Report {
	if zoom < detailThreshold {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.Report, 0, len(m.reports))
	for _, r := range m.reports {
		if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b api.Report) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// SpikeActive reports whether a spike arrived within SpikeFlagDuration of now.
func (m *Mirror) SpikeActive(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.spikeAt.IsZero() && now.Before(m.spikeAt.Add(SpikeFlagDuration))
}

// LastSpike returns the most recent spike, if any.
func (m *Mirror) LastSpike() *api.Spike {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastSpike == nil {
		return nil
	}
	sp := *m.lastSpike
	return &sp
}

// LastAlert returns the most recent location alert, if any.
func (m *Mirror) LastAlert() *api.LocationAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastAlert == nil {
		return nil
	}
	a := *m.lastAlert
	return &a
}
