package pulse

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// TileState is one immutable published version of a tile. Members are the
// active signals at publish time; the visible tile is re-evaluated from them
// at read time so decay follows the clock without any writes.
type TileState struct {
	Key       string
	Members   []domain.Signal
	Spike     *domain.Spike
	Removed   bool
	Version   uint64
	UpdatedAt time.Time
}

// Snapshot is the full visible tile set at Version.
type Snapshot struct {
	Tiles   []domain.PulseTile
	Version uint64
}

// Delta lists the tile changes in (since, Version]. When Reset is set the
// receiver must drop its tiles and treat Changed as a full snapshot.
type Delta struct {
	Changed []domain.PulseTile
	Removed []string
	Version uint64
	Reset   bool
}

// Ticket reserves a version for one atomic write.
type Ticket struct {
	Version uint64
	done    bool
}

// Cache is the versioned tile projection shared by all readers.
//
// Writers take a Ticket with Begin, persist their change tagged with the
// ticket version and then Publish (or Abort). The visible version only moves
// over a contiguous prefix of finished tickets, so a reader at version V sees
// every write numbered up to V and nothing above it, even while later
// tickets finish first.
type Cache struct {
	agg           *Aggregator
	maxTombstones int

	mu             sync.RWMutex
	last           uint64
	watermark      uint64
	finished       map[uint64]struct{}
	tiles          map[string][]*TileState // per-tile history ordered by version
	unsettled      map[string]struct{}     // tiles with more than one history entry
	compactedBelow uint64
}

// NewCache creates an empty Cache.
func NewCache(agg *Aggregator, maxTombstones int) *Cache {
	return &Cache{
		agg:           agg,
		maxTombstones: maxTombstones,
		finished:      make(map[uint64]struct{}),
		tiles:         make(map[string][]*TileState),
		unsettled:     make(map[string]struct{}),
	}
}

// Aggregator returns the aggregator used to evaluate tiles on read.
func (c *Cache) Aggregator() *Aggregator { return c.agg }

// Version returns the highest version visible to readers.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watermark
}

// Begin allocates the next global version. Every ticket must be finished
// with Publish or Abort, otherwise the visible version stops advancing.
func (c *Cache) Begin() *Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	return &Ticket{Version: c.last}
}

// Publish makes states visible at the ticket's version. States of tiles that
// were never visible and are removed are ignored.
func (c *Cache) Publish(t *Ticket, states ...TileState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return
	}
	t.done = true

	for _, st := range states {
		st.Version = t.Version
		st.Members = slices.Clone(st.Members)
		hist := c.tiles[st.Key]
		if st.Removed && (len(hist) == 0 || hist[len(hist)-1].Removed) {
			continue
		}
		idx, _ := slices.BinarySearchFunc(hist, st.Version, func(s *TileState, v uint64) int {
			return cmp.Compare(s.Version, v)
		})
		c.tiles[st.Key] = slices.Insert(hist, idx, &st)
		if len(c.tiles[st.Key]) > 1 {
			c.unsettled[st.Key] = struct{}{}
		}
	}
	c.finishLocked(t.Version)
}

// Abort finishes a ticket without changes.
func (c *Cache) Abort(t *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	c.finishLocked(t.Version)
}

// Bump publishes states under a fresh version and returns it.
func (c *Cache) Bump(states ...TileState) uint64 {
	t := c.Begin()
	c.Publish(t, states...)
	return t.Version
}

// Load replaces the cache contents with persisted tiles. Removed tiles are
// kept as tombstones. The version counter resumes from the highest version.
func (c *Cache) Load(states []TileState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tiles = make(map[string][]*TileState, len(states))
	c.unsettled = make(map[string]struct{})
	c.finished = make(map[uint64]struct{})
	var top uint64
	for _, st := range states {
		st.Members = slices.Clone(st.Members)
		c.tiles[st.Key] = []*TileState{&st}
		top = max(top, st.Version)
	}
	c.last, c.watermark, c.compactedBelow = top, top, 0
	c.compactTombstonesLocked()
}

func (c *Cache) finishLocked(v uint64) {
	c.finished[v] = struct{}{}
	advanced := false
	for {
		if _, ok := c.finished[c.watermark+1]; !ok {
			break
		}
		delete(c.finished, c.watermark+1)
		c.watermark++
		advanced = true
	}
	if advanced {
		c.settleLocked()
		c.compactTombstonesLocked()
	}
}

// settleLocked drops history entries shadowed by a newer visible entry.
func (c *Cache) settleLocked() {
	for key := range c.unsettled {
		hist := c.tiles[key]
		i := c.visibleIndex(hist)
		if i > 0 {
			hist = slices.Delete(hist, 0, i)
			c.tiles[key] = hist
		}
		if len(hist) <= 1 {
			delete(c.unsettled, key)
		}
	}
}

// compactTombstonesLocked forgets the oldest tombstones above maxTombstones.
// Deltas from before the newest forgotten tombstone become resets.
func (c *Cache) compactTombstonesLocked() {
	if c.maxTombstones <= 0 {
		return
	}
	type tomb struct {
		key     string
		version uint64
	}
	var tombs []tomb
	for key, hist := range c.tiles {
		if len(hist) == 1 && hist[0].Removed && hist[0].Version <= c.watermark {
			tombs = append(tombs, tomb{key, hist[0].Version})
		}
	}
	if len(tombs) <= c.maxTombstones {
		return
	}
	slices.SortFunc(tombs, func(a, b tomb) int { return cmp.Compare(a.version, b.version) })
	for _, t := range tombs[:len(tombs)-c.maxTombstones] {
		delete(c.tiles, t.key)
		c.compactedBelow = max(c.compactedBelow, t.version)
	}
}

// visibleIndex returns the index of the newest entry at or below the
// watermark, or -1.
func (c *Cache) visibleIndex(hist []*TileState) int {
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].Version <= c.watermark {
			return i
		}
	}
	return -1
}

// visible collects the visible state of every tile under a read lock.
func (c *Cache) visible() ([]*TileState, uint64, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*TileState, 0, len(c.tiles))
	for _, hist := range c.tiles {
		if i := c.visibleIndex(hist); i >= 0 {
			out = append(out, hist[i])
		}
	}
	return out, c.watermark, c.compactedBelow
}

// State returns the visible state of one tile.
func (c *Cache) State(tileKey string) (TileState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hist := c.tiles[tileKey]
	i := c.visibleIndex(hist)
	if i < 0 || hist[i].Removed {
		return TileState{}, false
	}
	return *hist[i], true
}

// Latest returns the newest published state of one tile, including states
// above the watermark. A writer holding the tile lock uses it as the base of
// its change: every earlier writer of the tile has already published.
func (c *Cache) Latest(tileKey string) (TileState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hist := c.tiles[tileKey]
	if len(hist) == 0 || hist[len(hist)-1].Removed {
		return TileState{}, false
	}
	return *hist[len(hist)-1], true
}

// evaluate computes the tile of st at now. ok is false for tombstones and
// for tiles whose members have all expired.
func (c *Cache) evaluate(st *TileState, now time.Time) (domain.PulseTile, bool) {
	if st.Removed {
		return domain.PulseTile{}, false
	}
	tile, ok := c.agg.Compute(st.Key, st.Members, now)
	if !ok {
		return domain.PulseTile{}, false
	}
	tile.Version = st.Version
	return tile, true
}

// Snapshot returns every live tile overlapping area, evaluated at now.
func (c *Cache) Snapshot(area domain.Area, now time.Time) Snapshot {
	states, version, _ := c.visible()

	snap := Snapshot{Version: version, Tiles: []domain.PulseTile{}}
	for _, st := range states {
		if !c.agg.InArea(st.Key, area) {
			continue
		}
		if tile, ok := c.evaluate(st, now); ok {
			snap.Tiles = append(snap.Tiles, tile)
		}
	}
	sortTiles(snap.Tiles)
	return snap
}

// Delta returns the changes in (since, Version] overlapping area. A tile that
// changed in the range but has fully expired by now is reported as removed.
func (c *Cache) Delta(area domain.Area, since uint64, now time.Time) Delta {
	states, version, compactedBelow := c.visible()

	if since > version || since < compactedBelow {
		snap := c.Snapshot(area, now)
		return Delta{Changed: snap.Tiles, Removed: []string{}, Version: snap.Version, Reset: true}
	}

	d := Delta{Version: version, Changed: []domain.PulseTile{}, Removed: []string{}}
	for _, st := range states {
		if st.Version <= since || !c.agg.InArea(st.Key, area) {
			continue
		}
		if tile, ok := c.evaluate(st, now); ok {
			d.Changed = append(d.Changed, tile)
		} else {
			d.Removed = append(d.Removed, st.Key)
		}
	}
	sortTiles(d.Changed)
	slices.Sort(d.Removed)
	return d
}

// ChangedSince is Delta keyed by wall-clock time for timestamp cursors.
func (c *Cache) ChangedSince(area domain.Area, since, now time.Time) Delta {
	states, version, _ := c.visible()

	d := Delta{Version: version, Changed: []domain.PulseTile{}, Removed: []string{}}
	for _, st := range states {
		if !st.UpdatedAt.After(since) || !c.agg.InArea(st.Key, area) {
			continue
		}
		if tile, ok := c.evaluate(st, now); ok {
			d.Changed = append(d.Changed, tile)
		} else {
			d.Removed = append(d.Removed, st.Key)
		}
	}
	sortTiles(d.Changed)
	slices.Sort(d.Removed)
	return d
}

// Spikes returns active spikes overlapping area detected after since.
func (c *Cache) Spikes(area domain.Area, since, now time.Time) []domain.Spike {
	states, _, _ := c.visible()

	out := []domain.Spike{}
	for _, st := range states {
		if st.Removed || st.Spike == nil || !c.agg.InArea(st.Key, area) {
			continue
		}
		if !st.Spike.DetectedAt.After(since) || !c.agg.SpikeActive(st.Spike, now) {
			continue
		}
		sp := *st.Spike
		sp.Version = st.Version
		out = append(out, sp)
	}
	slices.SortFunc(out, func(a, b domain.Spike) int {
		return strings.Compare(a.TileKey, b.TileKey)
	})
	return out
}

// ActiveSpike returns the tile's spike if it is still active at now.
func (c *Cache) ActiveSpike(tileKey string, now time.Time) *domain.Spike {
	st, ok := c.State(tileKey)
	if !ok || !c.agg.SpikeActive(st.Spike, now) {
		return nil
	}
	sp := *st.Spike
	sp.Version = st.Version
	return &sp
}

// Keys returns the keys of all live tiles.
func (c *Cache) Keys() []string {
	states, _, _ := c.visible()
	keys := make([]string, 0, len(states))
	for _, st := range states {
		if !st.Removed {
			keys = append(keys, st.Key)
		}
	}
	slices.Sort(keys)
	return keys
}

func sortTiles(tiles []domain.PulseTile) {
	slices.SortFunc(tiles, func(a, b domain.PulseTile) int {
		return strings.Compare(a.TileKey, b.TileKey)
	})
}

