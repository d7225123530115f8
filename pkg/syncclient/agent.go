package syncclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// Agent defaults.
const (
	DefaultPushRetryInterval = 2 * time.Minute
	DefaultLocateTimeout     = 15 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("agent already started")
	ErrNotStarted     = errors.New("agent not started")
	ErrStopped        = errors.New("agent stopped")
	ErrNoPush         = errors.New("no push connection")
)

// Options tunes an Agent. Zero values select the defaults.
type Options struct {
	PollInterval      time.Duration
	PushRetryInterval time.Duration
	LocateTimeout     time.Duration
	// DefaultArea is used when locating the viewer fails or times out.
	DefaultArea Area

	// Push and Poll replace the transports built from the session.
	Push UpdateSource
	Poll UpdateSource
}

func (o Options) withDefaults(s Session) Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PushRetryInterval <= 0 {
		o.PushRetryInterval = DefaultPushRetryInterval
	}
	if o.LocateTimeout <= 0 {
		o.LocateTimeout = DefaultLocateTimeout
	}
	if o.Push == nil {
		o.Push = NewPushSource(s)
	}
	if o.Poll == nil {
		o.Poll = NewPollSource(s, o.PollInterval)
	}
	return o
}

// Agent keeps one viewer's Mirror in sync. It prefers push, falls back to
// polling when push fails and retries push every PushRetryInterval.
// Results that arrive after Stop or UpdateArea are discarded.
type Agent struct {
	session Session
	opts    Options
	mirror  *Mirror
	log     *slog.Logger

	mu         sync.Mutex
	parent     context.Context
	cancel     context.CancelFunc
	gen        uint64
	state      State
	stale      bool
	preferPush bool
	observers  map[int]chan Change
	nextObs    int

	wg sync.WaitGroup
}

// NewAgent creates an agent for one session.
func NewAgent(s Session, opts Options) *Agent {
	s = s.withDefaults()
	return &Agent{
		session:   s,
		opts:      opts.withDefaults(s),
		mirror:    NewMirror(opts.DefaultArea),
		log:       s.Logger.With("component", "sync_agent"),
		state:     StateDisconnected,
		observers: make(map[int]chan Change),
	}
}

// Start begins syncing area. It returns immediately; progress is reported
// to subscribers.
func (a *Agent) Start(ctx context.Context, area Area, preferPush bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.state == StateStopped:
		return ErrStopped
	case a.parent != nil:
		return ErrAlreadyStarted
	}
	a.parent = ctx
	a.preferPush = preferPush
	a.mirror.Reset(area)
	a.launchLocked(area)
	return nil
}

// StartLocated resolves the viewer's area with locate, bounded by
// LocateTimeout, and starts syncing it. A failed or slow locate falls back
// to DefaultArea.
func (a *Agent) StartLocated(ctx context.Context, locate func(context.Context) (Area, error), preferPush bool) error {
	lctx, cancel := context.WithTimeout(ctx, a.opts.LocateTimeout)
	area, err := locate(lctx)
	cancel()
	if err != nil {
		a.log.Warn("locate failed, using default area", slog.String("error", err.Error()))
		area = a.opts.DefaultArea
	}
	return a.Start(ctx, area, preferPush)
}

// UpdateArea switches to a new area. The mirror is cleared and the stream
// restarts from a fresh snapshot.
func (a *Agent) UpdateArea(area Area) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.state == StateStopped:
		return ErrStopped
	case a.parent == nil:
		return ErrNotStarted
	}
	a.cancel()
	a.mirror.Reset(area)
	a.launchLocked(area)
	a.notifyLocked(Change{State: a.state, Stale: a.stale})
	return nil
}

// Stop ends syncing and closes every subscription. It is safe to call more
// than once.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.state == StateStopped {
		a.mu.Unlock()
		return
	}
	a.gen++
	a.state = StateStopped
	if a.cancel != nil {
		a.cancel()
	}
	for id, ch := range a.observers {
		delete(a.observers, id)
		close(ch)
	}
	a.mu.Unlock()

	a.wg.Wait()
}

// Subscribe returns a channel receiving every Change. A subscriber that
// falls more than buffer changes behind misses changes; the views always
// hold the current state. The returned func cancels the subscription.
func (a *Agent) Subscribe(buffer int) (<-chan Change, func()) {
	ch := make(chan Change, max(buffer, 1))

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateStopped {
		close(ch)
		return ch, func() {}
	}
	id := a.nextObs
	a.nextObs++
	a.observers[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.observers[id]; ok {
			delete(a.observers, id)
			close(c)
		}
	}
}

// State returns the transport state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Stale reports whether the mirror may be behind the server because the
// last transport attempt failed.
func (a *Agent) Stale() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stale
}

// Area returns the area being synced.
func (a *Agent) Area() Area { return a.mirror.Area() }

// Version returns the highest server version applied.
func (a *Agent) Version() uint64 { return a.mirror.Version() }

// Tiles returns the aggregated view.
func (a *Agent) Tiles() []api.PulseTile { return a.mirror.Tiles() }

// Signals returns individual reports once zoom reaches detailThreshold.
func (a *Agent) Signals(zoom, detailThreshold float64) []api.Report {
	return a.mirror.Signals(zoom, detailThreshold, a.session.Now())
}

// SpikeActive reports whether a spike arrived within SpikeFlagDuration.
func (a *Agent) SpikeActive() bool { return a.mirror.SpikeActive(a.session.Now()) }

// LastAlert returns the most recent location alert.
func (a *Agent) LastAlert() *api.LocationAlert { return a.mirror.LastAlert() }

type locationSender interface {
	SendLocation(lat, lng float64) error
}

// ReportLocation asks the server for a location alert. It needs an active
// push connection; the alert arrives as a Change.
func (a *Agent) ReportLocation(lat, lng float64) error {
	a.mu.Lock()
	active := a.state == StatePushActive
	a.mu.Unlock()

	ls, ok := a.opts.Push.(locationSender)
	if !active || !ok {
		return ErrNoPush
	}
	return ls.SendLocation(lat, lng)
}

func (a *Agent) launchLocked(area Area) {
	a.gen++
	gen := a.gen
	ctx, cancel := context.WithCancel(a.parent)
	a.cancel = cancel
	a.state = StateConnecting

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(ctx, gen, area)
	}()
}

func (a *Agent) run(ctx context.Context, gen uint64, area Area) {
	usePush := a.preferPush
	for ctx.Err() == nil {
		if usePush {
			a.setState(gen, StateConnecting, false)
			err := a.opts.Push.Stream(ctx, area, a.mirror.Cursor, a.emitter(gen), a.live(gen, StatePushActive))
			if ctx.Err() != nil {
				return
			}
			a.log.Warn("push unavailable, polling", slog.Any("error", err))
			a.setState(gen, StatePollingActive, true)
			usePush = false
			continue
		}

		pctx, cancel := ctx, context.CancelFunc(func() {})
		if a.preferPush {
			pctx, cancel = context.WithTimeout(ctx, a.opts.PushRetryInterval)
		}
		err := a.opts.Poll.Stream(pctx, area, a.mirror.Cursor, a.emitter(gen), a.live(gen, StatePollingActive))
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.log.Warn("poll failed", slog.String("error", err.Error()))
			a.setState(gen, StatePollingActive, true)
			if !sleep(ctx, a.opts.PollInterval) {
				return
			}
			continue
		}
		usePush = a.preferPush
	}
}

func (a *Agent) emitter(gen uint64) func(Update) {
	return func(u Update) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if gen != a.gen {
			return
		}
		c := a.mirror.Apply(u)
		if c.Empty() {
			return
		}
		c.State, c.Stale = a.state, a.stale
		a.notifyLocked(c)
	}
}

func (a *Agent) live(gen uint64, st State) func() {
	return func() { a.setState(gen, st, false) }
}

func (a *Agent) setState(gen uint64, st State, stale bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || (a.state == st && a.stale == stale) {
		return
	}
	a.state, a.stale = st, stale
	a.log.Debug("state changed", slog.String("state", st.String()), slog.Bool("stale", stale))
	a.notifyLocked(Change{Version: a.mirror.Version(), State: st, Stale: stale})
}

func (a *Agent) notifyLocked(c Change) {
	for _, ch := range a.observers {
		select {
		case ch <- c:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
