package syncclient

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func tile(id string, version uint64, intensity float64) api.PulseTile {
	return api.PulseTile{
		TileID:      id,
		Latitude:    52.52,
		Longitude:   13.405,
		Radius:      200,
		Intensity:   intensity,
		Confidence:  "LOW",
		SignalCount: 1,
		LastUpdated: t0,
		Version:     version,
	}
}

func report(id uuid.UUID, version uint64, created time.Time) api.Report {
	return api.Report{
		ID:         id,
		SignalType: "harassment",
		Severity:   4,
		Latitude:   52.52,
		Longitude:  13.405,
		Status:     "pending",
		TrustScore: 0.5,
		Confidence: "LOW",
		CreatedAt:  created,
		ExpiresAt:  created.Add(24 * time.Hour),
		Version:    version,
	}
}

func tileIDs(tiles []api.PulseTile) []string {
	out := make([]string, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, t.TileID)
	}
	return out
}

func TestMirror_DeltaReproducesSnapshot(t *testing.T) {
	t.Parallel()

	// Local state at version 7.
	m := NewMirror(Area{})
	m.Apply(Update{
		Version:    7,
		Reset:      true,
		Checkpoint: true,
		Tiles:      []api.PulseTile{tile("u33dc0a", 3, 0.2), tile("u33dc0b", 7, 0.4), tile("u33dc0c", 5, 0.6)},
	})
	require.Equal(t, uint64(7), m.Cursor())

	// Delta 7 -> 9: two changed tiles and one tombstone.
	c := m.Apply(Update{
		Version:      9,
		Checkpoint:   true,
		Tiles:        []api.PulseTile{tile("u33dc0a", 9, 0.5), tile("u33dc0d", 8, 0.1)},
		RemovedTiles: []string{"u33dc0c"},
	})
	assert.ElementsMatch(t, []string{"u33dc0a", "u33dc0d"}, c.ChangedTiles)
	assert.Equal(t, []string{"u33dc0c"}, c.RemovedTiles)
	assert.Equal(t, uint64(9), m.Cursor())

	// Fresh snapshot at version 9.
	fresh := NewMirror(Area{})
	fresh.Apply(Update{
		Version:    9,
		Reset:      true,
		Checkpoint: true,
		Tiles:      []api.PulseTile{tile("u33dc0d", 8, 0.1), tile("u33dc0b", 7, 0.4), tile("u33dc0a", 9, 0.5)},
	})

	assert.Equal(t, fresh.Tiles(), m.Tiles())
	assert.Equal(t, []string{"u33dc0a", "u33dc0b", "u33dc0d"}, tileIDs(m.Tiles()))
}

func TestMirror_ApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	u := Update{
		Version:      4,
		Checkpoint:   true,
		Tiles:        []api.PulseTile{tile("u33dc0a", 4, 0.3)},
		RemovedTiles: []string{"u33dc0z"},
		Reports:      []api.Report{report(id, 4, t0)},
	}

	m := NewMirror(Area{})
	first := m.Apply(u)
	assert.False(t, first.Empty())
	tiles := m.Tiles()

	second := m.Apply(u)
	assert.True(t, second.Empty())
	assert.Equal(t, tiles, m.Tiles())
	assert.Len(t, m.Signals(15, 14, t0), 1)
}

func TestMirror_OutOfOrderKeepsNewest(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	m.Apply(Update{Version: 9, Tiles: []api.PulseTile{tile("u33dc0a", 9, 0.9)}})
	c := m.Apply(Update{Version: 8, Tiles: []api.PulseTile{tile("u33dc0a", 8, 0.1)}})

	assert.True(t, c.Empty())
	require.Len(t, m.Tiles(), 1)
	assert.InDelta(t, 0.9, m.Tiles()[0].Intensity, 1e-9)
	assert.Equal(t, uint64(9), m.Version())
}

func TestMirror_Tombstones(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	m.Apply(Update{Version: 5, Tiles: []api.PulseTile{tile("u33dc0a", 5, 0.3)}})
	m.Apply(Update{Version: 9, RemovedTiles: []string{"u33dc0a"}})
	assert.Empty(t, m.Tiles())

	// A late copy of the removed tile is ignored.
	late := m.Apply(Update{Version: 8, Tiles: []api.PulseTile{tile("u33dc0a", 8, 0.4)}})
	assert.True(t, late.Empty())
	assert.Empty(t, m.Tiles())

	// A newer tile revives the key.
	revived := m.Apply(Update{Version: 10, Tiles: []api.PulseTile{tile("u33dc0a", 10, 0.2)}})
	assert.Equal(t, []string{"u33dc0a"}, revived.ChangedTiles)
	assert.Len(t, m.Tiles(), 1)
}

func TestMirror_StaleRemovalKeepsNewerTile(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	m.Apply(Update{Version: 10, Tiles: []api.PulseTile{tile("u33dc0a", 10, 0.3)}})
	c := m.Apply(Update{Version: 9, RemovedTiles: []string{"u33dc0a"}})

	assert.True(t, c.Empty())
	assert.Len(t, m.Tiles(), 1)
}

func TestMirror_Reports(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	m := NewMirror(Area{})
	m.Apply(Update{Version: 3, Reports: []api.Report{report(id, 3, t0)}})

	t.Run("vote summary updates counts", func(t *testing.T) {
		c := m.Apply(Update{Version: 4, Votes: []api.VoteSummary{{
			SignalID: id, TrueVotes: 3, TrustScore: 0.7, Confidence: "MEDIUM", Status: "verified", Version: 4,
		}}})
		assert.Equal(t, []uuid.UUID{id}, c.ChangedReports)

		got := m.Signals(16, 14, t0)
		require.Len(t, got, 1)
		assert.Equal(t, 3, got[0].TrueVotes)
		assert.Equal(t, "verified", got[0].Status)
		assert.Equal(t, "MEDIUM", got[0].Confidence)
	})

	t.Run("older vote summary is ignored", func(t *testing.T) {
		c := m.Apply(Update{Version: 2, Votes: []api.VoteSummary{{SignalID: id, TrueVotes: 1, Version: 2}}})
		assert.True(t, c.Empty())
		assert.Equal(t, 3, m.Signals(16, 14, t0)[0].TrueVotes)
	})

	t.Run("deleted status removes the report", func(t *testing.T) {
		r := report(id, 6, t0)
		r.Status = "deleted"
		c := m.Apply(Update{Version: 6, Reports: []api.Report{r}})
		assert.Equal(t, []uuid.UUID{id}, c.RemovedReports)
		assert.Empty(t, m.Signals(16, 14, t0))

		late := m.Apply(Update{Version: 5, Reports: []api.Report{report(id, 5, t0)}})
		assert.True(t, late.Empty())
	})
}

func TestMirror_DeletedReportEvent(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	m := NewMirror(Area{})
	m.Apply(Update{Version: 3, Reports: []api.Report{report(id, 3, t0)}})

	c := m.Apply(Update{Version: 7, DeletedReports: []uuid.UUID{id}})
	assert.Equal(t, []uuid.UUID{id}, c.RemovedReports)
	assert.Empty(t, m.Signals(16, 14, t0))
}

func TestMirror_SignalsView(t *testing.T) {
	t.Parallel()

	older, newer, expired := uuid.New(), uuid.New(), uuid.New()
	gone := report(expired, 3, t0.Add(-30*time.Hour))

	m := NewMirror(Area{})
	m.Apply(Update{Version: 3, Reports: []api.Report{
		report(older, 1, t0.Add(-time.Hour)),
		report(newer, 2, t0),
		gone,
	}})

	assert.Nil(t, m.Signals(12, 14, t0), "below the detail threshold")

	got := m.Signals(14, 14, t0)
	require.Len(t, got, 2)
	assert.Equal(t, newer, got[0].ID)
	assert.Equal(t, older, got[1].ID)

	// Reading does not mutate: the expired report is still held.
	assert.Len(t, m.Signals(14, 14, gone.CreatedAt), 3)
}

func TestMirror_AreaFilter(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{Lat: 52.52, Lng: 13.405, RadiusKm: 2})

	far := tile("u0qj8fr", 3, 0.5)
	far.Latitude, far.Longitude = 48.137, 11.575
	near := tile("u33dc0a", 3, 0.5)

	c := m.Apply(Update{Version: 3, Tiles: []api.PulseTile{far, near}})
	assert.Equal(t, []string{"u33dc0a"}, c.ChangedTiles)

	// A report that moves out of the area is dropped.
	id := uuid.New()
	m.Apply(Update{Version: 4, Reports: []api.Report{report(id, 4, t0)}})
	moved := report(id, 5, t0)
	moved.Latitude, moved.Longitude = 48.137, 11.575
	c = m.Apply(Update{Version: 5, Reports: []api.Report{moved}})
	assert.Equal(t, []uuid.UUID{id}, c.RemovedReports)
}

func TestMirror_SpikeFlag(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	assert.False(t, m.SpikeActive(t0))

	sp := api.Spike{ID: uuid.New(), TileID: "u33dc0a", Latitude: 52.52, Longitude: 13.405, ReportCount: 10, Version: 12}
	c := m.Apply(Update{Version: 12, Spikes: []api.Spike{sp}, ReceivedAt: t0})
	require.NotNil(t, c.Spike)

	assert.True(t, m.SpikeActive(t0.Add(4*time.Second)))
	assert.False(t, m.SpikeActive(t0.Add(SpikeFlagDuration)))

	// The same spike delivered again does not re-trigger.
	m.Apply(Update{Version: 12, Spikes: []api.Spike{sp}, ReceivedAt: t0.Add(10 * time.Second)})
	assert.False(t, m.SpikeActive(t0.Add(11*time.Second)))

	// A new spike does.
	sp2 := sp
	sp2.ID, sp2.Version = uuid.New(), 14
	m.Apply(Update{Version: 14, Spikes: []api.Spike{sp2}, ReceivedAt: t0.Add(20 * time.Second)})
	assert.True(t, m.SpikeActive(t0.Add(21*time.Second)))
	assert.Equal(t, uint64(14), m.LastSpike().Version)
}

func TestMirror_PushedEventsDoNotMoveCursor(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	m.Apply(Update{Version: 5, Reset: true, Checkpoint: true})
	m.Apply(Update{Version: 8, Tiles: []api.PulseTile{tile("u33dc0a", 8, 0.2)}})

	assert.Equal(t, uint64(8), m.Version())
	assert.Equal(t, uint64(5), m.Cursor())
}

func TestMirror_StaleResetIgnored(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	m.Apply(Update{Version: 9, Reset: true, Checkpoint: true, Tiles: []api.PulseTile{tile("u33dc0a", 9, 0.2)}})

	c := m.Apply(Update{Version: 6, Reset: true, Checkpoint: true})
	assert.True(t, c.Empty())
	assert.Len(t, m.Tiles(), 1)
}

func TestMirror_ResetClearsEverything(t *testing.T) {
	t.Parallel()

	m := NewMirror(Area{})
	m.Apply(Update{Version: 9, Checkpoint: true, Tiles: []api.PulseTile{tile("u33dc0a", 9, 0.2)}, Alert: &api.LocationAlert{AlertLevel: "low"}})
	require.NotNil(t, m.LastAlert())

	area := Area{Lat: 1, Lng: 2, RadiusKm: 3}
	m.Reset(area)

	assert.Empty(t, m.Tiles())
	assert.Zero(t, m.Version())
	assert.Zero(t, m.Cursor())
	assert.Nil(t, m.LastAlert())
	assert.Equal(t, area, m.Area())
}
