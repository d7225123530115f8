package pulse

import (
	"testing"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

func TestDetectSpike(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(testConfig())
	key := agg.TileKey(podil)

	var signals []domain.Signal
	for i := range 9 {
		typ := domain.SignalTypeHarassment
		if i%3 == 0 {
			typ = domain.SignalTypeFollowed
		}
		signals = append(signals, newSignal(agg, podil, typ, 3, 0.5, now.Add(-time.Duration(i)*2*time.Minute)))
	}
	// An old report outside the window does not count.
	signals = append(signals, newSignal(agg, podil, domain.SignalTypeOther, 3, 0.5, now.Add(-2*time.Hour)))

	if sp := agg.DetectSpike(key, signals, now); sp != nil {
		t.Fatalf("9 recent reports should not spike, got %+v", sp)
	}

	signals = append(signals, newSignal(agg, podil, domain.SignalTypeHarassment, 4, 0.5, now))
	sp := agg.DetectSpike(key, signals, now)
	if sp == nil {
		t.Fatal("expected a spike at 10 recent reports")
	}
	if sp.ReportCount != 10 {
		t.Errorf("report count = %d, want 10", sp.ReportCount)
	}
	if sp.Intensity != 0.5 {
		t.Errorf("intensity = %v, want 0.5", sp.Intensity)
	}
	if len(sp.SignalTypes) != 2 || sp.SignalTypes[0] != domain.SignalTypeFollowed {
		t.Errorf("signal types = %v", sp.SignalTypes)
	}
	if !sp.DetectedAt.Equal(now) {
		t.Errorf("detected at = %v, want %v", sp.DetectedAt, now)
	}

	again := agg.DetectSpike(key, signals, now.Add(time.Second))
	if again == nil || again.ID != sp.ID {
		t.Error("same burst should keep its id")
	}

	if !agg.SpikeActive(sp, now.Add(29*time.Minute)) {
		t.Error("spike should be active within the window")
	}
	if agg.SpikeActive(sp, now.Add(30*time.Minute)) {
		t.Error("spike should be inactive after the window")
	}
}

func TestContinueSpike_KeepsIdentityWhileBurstLasts(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(testConfig())
	key := agg.TileKey(podil)

	var signals []domain.Signal
	for i := range 10 {
		signals = append(signals, newSignal(agg, podil, domain.SignalTypeHarassment, 3, 0.5, now.Add(-time.Duration(i)*2*time.Minute)))
	}
	first, fresh := agg.ContinueSpike(nil, agg.DetectSpike(key, signals, now))
	if first == nil || !fresh {
		t.Fatalf("first detection: got %+v fresh=%v, want a fresh spike", first, fresh)
	}

	// The oldest report ages out while new ones keep the burst going.
	signals = append(signals,
		newSignal(agg, podil, domain.SignalTypeFollowed, 3, 0.5, now.Add(5*time.Minute)),
		newSignal(agg, podil, domain.SignalTypeFollowed, 3, 0.5, now.Add(6*time.Minute)),
	)
	later := now.Add(13 * time.Minute)
	raw := agg.DetectSpike(key, signals, later)
	if raw == nil {
		t.Fatal("burst should still be detected")
	}
	if raw.ID == first.ID {
		t.Fatal("window contents changed, a raw detection should not match by itself")
	}

	cont, fresh := agg.ContinueSpike(first, raw)
	if fresh {
		t.Error("continuing burst reported as fresh")
	}
	if cont.ID != first.ID {
		t.Errorf("id = %v, want %v", cont.ID, first.ID)
	}
	if !cont.DetectedAt.Equal(now) {
		t.Errorf("detected at = %v, want first detection %v", cont.DetectedAt, now)
	}
	if cont.ReportCount != 11 {
		t.Errorf("report count = %d, want 11", cont.ReportCount)
	}
	// Active relative to the newest report, not the first detection.
	if !agg.SpikeActive(cont, now.Add(35*time.Minute)) {
		t.Error("spike should stay active while its newest report is in the window")
	}

	// A burst after a quiet period gets a new identity.
	var next []domain.Signal
	burst := now.Add(3 * time.Hour)
	for i := range 10 {
		next = append(next, newSignal(agg, podil, domain.SignalTypeOther, 3, 0.5, burst.Add(-time.Duration(i)*time.Minute)))
	}
	again, fresh := agg.ContinueSpike(cont, agg.DetectSpike(key, next, burst))
	if !fresh || again.ID == first.ID {
		t.Errorf("new burst: fresh=%v id=%v, want a fresh spike with a new id", fresh, again.ID)
	}
	if !again.DetectedAt.Equal(burst) {
		t.Errorf("detected at = %v, want %v", again.DetectedAt, burst)
	}
}

func TestContinueSpike_NoSpike(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(testConfig())
	prev := &domain.Spike{TileKey: "u8vxn8q", DetectedAt: now}
	if sp, fresh := agg.ContinueSpike(prev, nil); sp != nil || fresh {
		t.Errorf("got %+v fresh=%v, want nil", sp, fresh)
	}
}
