package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// DefaultPollInterval is the pause between two polls.
const DefaultPollInterval = 30 * time.Second

// PollSource fetches deltas from GET /api/v1/realtime/updates.
type PollSource struct {
	session  Session
	interval time.Duration
}

// NewPollSource creates a PollSource. A non-positive interval means
// DefaultPollInterval.
func NewPollSource(s Session, interval time.Duration) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollSource{session: s.withDefaults(), interval: interval}
}

// Fetch returns every change in area after version. Version zero asks for
// a full snapshot.
func (p *PollSource) Fetch(ctx context.Context, area Area, version uint64) (*api.PollResponse, error) {
	q := url.Values{}
	area.query(q)
	if version > 0 {
		q.Set("version", strconv.FormatUint(version, 10))
	}
	target := p.session.BaseURL + "/api/v1/realtime/updates"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	req.Header = p.session.header()
	req.Header.Set("Accept", "application/json")

	resp, err := p.session.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("poll: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var out api.PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &out, nil
}

// Stream polls immediately and then every interval. The first failed poll
// ends the stream.
func (p *PollSource) Stream(ctx context.Context, area Area, cursor func() uint64, emit func(Update), ready func()) error {
	log := p.session.Logger.With("source", "poll")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	first := true
	for {
		resp, err := p.Fetch(ctx, area, cursor())
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		emit(pollUpdate(resp, p.session.Now()))
		if first {
			ready()
			first = false
		}
		log.Debug("polled", slog.Uint64("version", resp.Version), slog.Bool("reset", resp.Reset))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
