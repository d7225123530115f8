package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/heartmarshall/safety-pulse/internal/adapter/memory"
	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/abuse"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var (
	t0    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	podil = domain.Location{Lat: 50.4649, Lng: 30.5155}
)

type fixture struct {
	svc   *Service
	store *memory.Store
	cache *pulse.Cache
	guard *abuse.Guard

	mu    sync.Mutex
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := testLogger()
	store := memory.NewStore()
	guard := abuse.NewGuard(config.AbuseConfig{
		MaxSubmissions:   5,
		SubmissionWindow: time.Minute,
		MaxVotes:         30,
		VoteWindow:       time.Minute,
		MaxSpeedKmh:      300,
		BurstCount:       50,
		BurstWindow:      10 * time.Minute,
		RapidGap:         0,
		VelocityPenalty:  0.5,
		FrequencyPenalty: 0.8,
		RapidPenalty:     0.8,
		DeleteCooldown:   time.Hour,
		JanitorInterval:  time.Minute,
	}, log)
	scorer := trust.NewScorer(config.TrustConfig{
		NeutralTrust:         0.5,
		LowSeverityBonus:     0.125,
		PriorStrength:        3,
		ConfidenceSaturation: 10,
		MediumConfidenceAt:   3,
		MinVotes:             3,
		VerifyRatio:          0.7,
		DisputeRatio:         0.3,
		SignalTTL:            24 * time.Hour,
		VoteWindow:           72 * time.Hour,
		ProtectedConfidence:  0.7,
	}, guard)
	agg := pulse.NewAggregator(config.PulseConfig{
		Precision:          7,
		RadiusMeters:       200,
		Saturation:         10,
		DecayWindow:        24 * time.Hour,
		DecayFloor:         0.2,
		CorroborationTrust: 0.6,
		SpikeCount:         10,
		SpikeWindow:        30 * time.Minute,
		SpikeSaturation:    20,
		MaxTombstones:      100,
	})
	cache := pulse.NewCache(agg, 100)

	f := &fixture{store: store, cache: cache, guard: guard, clock: t0}
	f.svc = NewService(log, store, store, store, memory.NewTxManager(), guard, scorer, cache, NewMetrics(prometheus.NewRegistry()))
	f.svc.now = f.now
	return f
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.clock = f.clock.Add(d)
	f.mu.Unlock()
}

func as(id string) context.Context {
	return ctxutil.WithIdentity(context.Background(), ctxutil.Identity{ID: id})
}

func (f *fixture) submit(t *testing.T, owner string, severity int) domain.Signal {
	t.Helper()
	res, err := f.svc.Submit(as(owner), SubmitInput{
		Type:     domain.SignalTypeHarassment,
		Severity: severity,
		Location: podil,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return res.Signal
}

func conflictCode(t *testing.T, err error) domain.ConflictCode {
	t.Helper()
	var ce *domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	return ce.Code
}

func TestScenario_SubmitVoteDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	sig := f.submit(t, "device:owner", 5)
	if sig.TrustScore != 0.5 {
		t.Errorf("initial trust = %v, want 0.5", sig.TrustScore)
	}
	sum, _ := f.svc.GetSummary(ctx, sig.ID)
	if sum.ConfidenceLabel != domain.ConfidenceLow || sum.TotalVotes != 0 {
		t.Errorf("initial summary = %+v", sum)
	}

	// A second report keeps the tile alive after the deletion.
	f.advance(time.Minute)
	f.submit(t, "device:neighbour", 3)

	for i := range 3 {
		f.advance(time.Second)
		if _, err := f.svc.CastVote(as(fmt.Sprintf("device:voter%d", i)), sig.ID, true); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}
	sum, _ = f.svc.GetSummary(ctx, sig.ID)
	if sum.TrustScore <= 0.5 {
		t.Errorf("trust after 3-0 = %v, want > 0.5", sum.TrustScore)
	}
	if sum.ConfidenceLabel != domain.ConfidenceMedium {
		t.Errorf("label after 3 votes = %s, want MEDIUM", sum.ConfidenceLabel)
	}

	key := sig.TileKey
	before, ok := f.cache.State(key)
	if !ok {
		t.Fatal("tile missing before deletion")
	}
	beforeTile := f.svc.Pulses(ctx, domain.Area{}).Tiles[0]

	f.advance(time.Second)
	res, err := f.svc.Delete(as("device:owner"), sig.ID, DeleteInput{})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.Signal.Status != domain.SignalStatusDeleted || !res.Signal.DeletedByOwner {
		t.Errorf("deleted signal = %+v", res.Signal)
	}
	if res.VotesRemoved != 3 {
		t.Errorf("votes removed = %d, want 3", res.VotesRemoved)
	}
	if votes, _ := f.store.ListVotes(ctx, sig.ID); len(votes) != 0 {
		t.Errorf("votes left = %d, want 0", len(votes))
	}

	after, ok := f.cache.State(key)
	if !ok {
		t.Fatal("tile should survive with the neighbour's signal")
	}
	if after.Version <= before.Version {
		t.Errorf("tile version %d did not increase from %d", after.Version, before.Version)
	}
	afterTile := f.svc.Pulses(ctx, domain.Area{}).Tiles[0]
	if afterTile.SignalCount != 1 || afterTile.Intensity >= beforeTile.Intensity {
		t.Errorf("tile not recomputed without the deleted signal: %+v", afterTile)
	}
}

func TestCastVote_DuplicateRejectedUntilRemoved(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.submit(t, "device:owner", 4)
	voter := as("device:voter")

	first, err := f.svc.CastVote(voter, sig.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if code := conflictCode(t, voteErr(f.svc.CastVote(voter, sig.ID, false))); code != domain.ConflictAlreadyVoted {
		t.Errorf("code = %s, want already_voted", code)
	}

	removed, err := f.svc.RemoveVote(voter, sig.ID)
	if err != nil {
		t.Fatal(err)
	}
	if removed.Signal.TrustScore != sig.TrustScore || removed.Signal.TotalVotes() != 0 {
		t.Errorf("removal did not restore prior state: %+v", removed.Signal)
	}
	if removed.Version <= first.Version {
		t.Error("removal must publish a newer version")
	}

	if _, err := f.svc.CastVote(voter, sig.ID, false); err != nil {
		t.Errorf("re-vote after removal: %v", err)
	}
	check, _ := f.svc.CheckVote(voter, sig.ID)
	if !check.HasVoted || check.Vote.IsTrue {
		t.Errorf("check = %+v, want a false vote", check)
	}
}

func voteErr(_ *VoteResult, err error) error { return err }
func deleteErr(_ *DeleteResult, err error) error { return err }

func TestCastVote_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.submit(t, "device:owner", 2)

	if code := conflictCode(t, voteErr(f.svc.CastVote(as("device:owner"), sig.ID, true))); code != domain.ConflictOwnSignal {
		t.Errorf("own vote code = %s", code)
	}
	if _, err := f.svc.CastVote(as("device:v"), uuid.New(), true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown signal: got %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CastVote(context.Background(), sig.ID, true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("anonymous: got %v, want ErrUnauthorized", err)
	}
	if _, err := f.svc.RemoveVote(as("device:v"), sig.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("remove missing vote: got %v, want ErrNotFound", err)
	}

	f.advance(25 * time.Hour)
	if code := conflictCode(t, voteErr(f.svc.CastVote(as("device:late"), sig.ID, true))); code != domain.ConflictSignalClosed {
		t.Errorf("expired code = %s", code)
	}
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Submit(as("device:a"), SubmitInput{Type: "ufo", Severity: 9, Location: domain.Location{Lat: 91}})

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("field errors = %d, want 3", len(ve.Errors))
	}
	if f.cache.Version() != 0 {
		t.Error("rejected submission must not allocate a version")
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for range 5 {
		f.submit(t, "device:spammer", 1)
	}
	version := f.cache.Version()

	_, err := f.svc.Submit(as("device:spammer"), SubmitInput{Type: domain.SignalTypeOther, Severity: 1, Location: podil})
	var rej *domain.AbuseRejection
	if !errors.As(err, &rej) || rej.RetryAfter <= 0 || rej.RetryAfter > 12*time.Second {
		t.Fatalf("got %v, want AbuseRejection with a retry within one refill", err)
	}
	if f.cache.Version() != version {
		t.Error("rejection changed the pulse version")
	}
	all, _ := f.store.ListSignals(context.Background(), domain.SignalFilter{})
	if len(all) != 5 {
		t.Errorf("stored signals = %d, want 5", len(all))
	}
}

func TestSubmit_FailureLeavesNoTrace(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tiles := &tileStoreMock{
		UpsertTileFunc: func(context.Context, domain.TileRecord) error { return errors.New("disk full") },
	}
	f.svc.tiles = tiles

	_, err := f.svc.Submit(as("device:a"), SubmitInput{Type: domain.SignalTypeFollowed, Severity: 3, Location: podil})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(tiles.UpsertTileCalls()) != 1 {
		t.Errorf("upsert calls = %d, want 1", len(tiles.UpsertTileCalls()))
	}

	ctx := context.Background()
	if all, _ := f.store.ListSignals(ctx, domain.SignalFilter{}); len(all) != 0 {
		t.Errorf("signal persisted despite rollback")
	}
	if snap := f.svc.Pulses(ctx, domain.Area{}); len(snap.Tiles) != 0 {
		t.Errorf("tile published despite rollback")
	}
	if f.svc.locks.size() != 0 {
		t.Error("locks leaked")
	}
}

func TestDelete_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.submit(t, "device:owner", 4)

	if code := conflictCode(t, deleteErr(f.svc.Delete(as("device:other"), sig.ID, DeleteInput{}))); code != domain.ConflictNotOwner {
		t.Errorf("non-owner code = %s", code)
	}

	other := f.submit(t, "device:owner", 4)
	if _, err := f.svc.Delete(as("device:owner"), sig.ID, DeleteInput{}); err != nil {
		t.Fatal(err)
	}
	var rej *domain.AbuseRejection
	if err := deleteErr(f.svc.Delete(as("device:owner"), other.ID, DeleteInput{})); !errors.As(err, &rej) {
		t.Errorf("second delete within cooldown: got %v", err)
	}
	if code := conflictCode(t, deleteErr(f.svc.Delete(as("device:owner"), sig.ID, DeleteInput{}))); code != domain.ConflictSignalClosed {
		t.Errorf("double delete code = %s", code)
	}
}

func TestDelete_ProtectedSignal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.submit(t, "device:owner", 4)
	for i := range 8 {
		if _, err := f.svc.CastVote(as(fmt.Sprintf("device:v%d", i)), sig.ID, true); err != nil {
			t.Fatal(err)
		}
	}

	code := conflictCode(t, deleteErr(f.svc.Delete(as("device:owner"), sig.ID, DeleteInput{})))
	if code != domain.ConflictProtectedSignal {
		t.Errorf("code = %s, want protected_signal", code)
	}
}

func TestExpireDue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	notes := &notifierMock{
		SignalCreatedFunc: func(domain.Signal) {},
		TilesChangedFunc:  func([]domain.PulseTile, []string, uint64) {},
	}
	f.svc.SetNotifier(notes)

	sig := f.submit(t, "device:owner", 3)
	f.advance(12 * time.Hour)
	fresh := f.submit(t, "device:owner", 3)

	f.advance(13 * time.Hour)
	n, err := f.svc.ExpireDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	got, _ := f.svc.GetSignal(context.Background(), sig.ID)
	if got.Status != domain.SignalStatusExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
	snap := f.svc.Pulses(context.Background(), domain.Area{})
	if len(snap.Tiles) != 1 || snap.Tiles[0].SignalCount != 1 {
		t.Errorf("tile after expiry = %+v", snap.Tiles)
	}

	f.advance(12 * time.Hour)
	if n, _ := f.svc.ExpireDue(context.Background()); n != 1 {
		t.Errorf("second sweep expired %d, want 1 (%s)", n, fresh.ID)
	}
	calls := notes.TilesChangedCalls()
	last := calls[len(calls)-1]
	if len(last.Removed) != 1 || last.Removed[0] != sig.TileKey {
		t.Errorf("last tile change = %+v, want removal of %s", last, sig.TileKey)
	}
	if n, _ := f.svc.ExpireDue(context.Background()); n != 0 {
		t.Errorf("idle sweep expired %d", n)
	}
}

func TestWarm_ResumesVersions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.submit(t, "device:a", 3)
	f.submit(t, "device:b", 5)
	want := f.svc.Pulses(context.Background(), domain.Area{})

	restarted := newFixture(t)
	restarted.store = f.store
	restarted.svc.signals, restarted.svc.votes, restarted.svc.tiles = f.store, f.store, f.store
	restarted.svc.now = f.now

	if err := restarted.svc.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := restarted.svc.Pulses(context.Background(), domain.Area{})
	if got.Version != want.Version || len(got.Tiles) != len(want.Tiles) {
		t.Fatalf("warm snapshot v%d/%d tiles, want v%d/%d", got.Version, len(got.Tiles), want.Version, len(want.Tiles))
	}
	if got.Tiles[0].Intensity != want.Tiles[0].Intensity {
		t.Errorf("intensity %v != %v", got.Tiles[0].Intensity, want.Tiles[0].Intensity)
	}

	res, err := restarted.svc.Submit(as("device:c"), SubmitInput{Type: domain.SignalTypeOther, Severity: 1, Location: podil})
	if err != nil {
		t.Fatal(err)
	}
	if res.Version != want.Version+1 {
		t.Errorf("next version = %d, want %d", res.Version, want.Version+1)
	}
}

func TestCastVote_Concurrent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.submit(t, "device:owner", 4)

	const voters = 25
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := as(fmt.Sprintf("device:v%d", i))
			if _, err := f.svc.CastVote(ctx, sig.ID, i%5 != 0); err != nil {
				errs <- err
			}
			// the duplicate must always lose
			if _, err := f.svc.CastVote(ctx, sig.ID, true); err == nil {
				errs <- fmt.Errorf("voter %d voted twice", i)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	got, _ := f.svc.GetSignal(context.Background(), sig.ID)
	votes, _ := f.store.ListVotes(context.Background(), sig.ID)
	if got.TotalVotes() != voters || len(votes) != voters {
		t.Errorf("counts %d/%d, stored %d, want %d", got.TrueVotes, got.FalseVotes, len(votes), voters)
	}
	if got.TrueVotes != 20 {
		t.Errorf("true votes = %d, want 20", got.TrueVotes)
	}
	if f.cache.Version() != uint64(1+2*voters) {
		t.Errorf("version = %d, want %d", f.cache.Version(), 1+2*voters)
	}
}

func TestListReports(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.submit(t, "device:a", 3)
	f.advance(2 * time.Hour)
	f.submit(t, "device:b", 4)

	got, err := f.svc.ListReports(context.Background(), ListInput{
		Area:       domain.Area{Center: podil, RadiusKm: 1},
		TimeWindow: TimeWindowHour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Severity != 4 {
		t.Errorf("1h window = %d signals", len(got))
	}

	if _, err := f.svc.ListReports(context.Background(), ListInput{Area: domain.Area{Center: podil}, TimeWindow: "1y"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("invalid input: got %v, want ErrValidation", err)
	}
}

var errSerialization = errors.New("serialization failure")

// retryingTx reruns the whole callback after an injected failure the way the
// postgres TxManager does after SQLSTATE 40001.
type retryingTx struct {
	inner    *memory.TxManager
	failures int
	attempts int
}

func (m *retryingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	for {
		m.attempts++
		err := m.inner.RunInTx(ctx, func(ctx context.Context) error {
			if err := fn(ctx); err != nil {
				return err
			}
			if m.failures > 0 {
				m.failures--
				return errSerialization
			}
			return nil
		})
		if !errors.Is(err, errSerialization) {
			return err
		}
	}
}

func TestVotes_SurviveTransactionRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sig := f.submit(t, "device:owner", 4)

	tx := &retryingTx{inner: memory.NewTxManager(), failures: 1}
	f.svc.tx = tx

	res, err := f.svc.CastVote(as("device:voter"), sig.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if tx.attempts != 2 {
		t.Fatalf("attempts = %d, want 2", tx.attempts)
	}

	votes, _ := f.store.ListVotes(ctx, sig.ID)
	stored, _ := f.store.GetSignal(ctx, sig.ID)
	if len(votes) != 1 || res.Signal.TrueVotes != 1 || stored.TrueVotes != 1 {
		t.Fatalf("records=%d result=%d stored=%d, want 1 each", len(votes), res.Signal.TrueVotes, stored.TrueVotes)
	}

	tx.failures, tx.attempts = 1, 0
	removed, err := f.svc.RemoveVote(as("device:voter"), sig.ID)
	if err != nil {
		t.Fatal(err)
	}
	stored, _ = f.store.GetSignal(ctx, sig.ID)
	if removed.Signal.TotalVotes() != 0 || stored.TotalVotes() != 0 {
		t.Errorf("after removal result=%d stored=%d, want 0", removed.Signal.TotalVotes(), stored.TotalVotes())
	}
	if stored.TrustScore != sig.TrustScore {
		t.Errorf("trust = %v, want the pre-vote %v", stored.TrustScore, sig.TrustScore)
	}
}

func TestDelete_LastSignalBehindOpenTicket(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	slow := f.cache.Begin()
	sig := f.submit(t, "device:owner", 3)
	if _, err := f.svc.Delete(as("device:owner"), sig.ID, DeleteInput{}); err != nil {
		t.Fatal(err)
	}
	f.cache.Abort(slow)

	if snap := f.svc.Pulses(ctx, domain.Area{}); len(snap.Tiles) != 0 {
		t.Errorf("tiles after delete = %+v, want none", snap.Tiles)
	}
	recs, _ := f.store.ListTiles(ctx)
	if len(recs) != 1 || !recs[0].Removed {
		t.Errorf("persisted tiles = %+v, want one removed record", recs)
	}
	if d := f.cache.Delta(domain.Area{}, 0, f.now()); len(d.Removed) != 1 || d.Removed[0] != sig.TileKey {
		t.Errorf("delta removed = %v, want [%s]", d.Removed, sig.TileKey)
	}
}

func TestDelete_ExpiredSignalIsFinal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sig := f.submit(t, "device:owner", 3)

	f.advance(25 * time.Hour)
	if _, err := f.svc.ExpireDue(context.Background()); err != nil {
		t.Fatal(err)
	}

	code := conflictCode(t, deleteErr(f.svc.Delete(as("device:owner"), sig.ID, DeleteInput{})))
	if code != domain.ConflictSignalClosed {
		t.Errorf("code = %s, want signal_closed", code)
	}
	got, _ := f.svc.GetSignal(context.Background(), sig.ID)
	if got.Status != domain.SignalStatusExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
}
