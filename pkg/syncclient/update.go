package syncclient

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// Update is one batch of server state, pushed or polled. Every source
// converts its payloads into Updates so the Mirror has a single apply path.
type Update struct {
	// Version is the server version the batch was produced at.
	Version uint64
	// Reset replaces the mirror contents instead of merging into them.
	Reset bool
	// Checkpoint marks a consistent cut: the batch holds every change up to
	// Version, so Version is safe to resume from. Pushed events are not.
	Checkpoint bool

	Tiles          []api.PulseTile
	RemovedTiles   []string
	Reports        []api.Report
	Votes          []api.VoteSummary
	DeletedReports []uuid.UUID
	Spikes         []api.Spike
	Alert          *api.LocationAlert

	ReceivedAt time.Time
}

func pollUpdate(resp *api.PollResponse, now time.Time) Update {
	return Update{
		Version:      resp.Version,
		Reset:        resp.Reset,
		Checkpoint:   true,
		Tiles:        resp.PulseUpdates,
		RemovedTiles: resp.RemovedTiles,
		Reports:      resp.NewReports,
		Spikes:       resp.Spikes,
		ReceivedAt:   now,
	}
}

// eventUpdate converts a pushed event. ok is false for messages that carry
// no state.
func eventUpdate(msg api.ServerMessage, now time.Time) (Update, bool, error) {
	u := Update{Version: msg.Version, ReceivedAt: now}
	switch msg.Type {
	case api.EventNewReport:
		var r api.Report
		if err := msg.Decode(&r); err != nil {
			return Update{}, false, err
		}
		u.Reports = []api.Report{r}
	case api.EventPulseUpdate:
		var d api.PulseUpdateData
		if err := msg.Decode(&d); err != nil {
			return Update{}, false, err
		}
		u.Version = d.Version
		u.Tiles, u.RemovedTiles = d.Tiles, d.RemovedTiles
	case api.EventVoteCast:
		var d api.VoteCastData
		if err := msg.Decode(&d); err != nil {
			return Update{}, false, err
		}
		u.Votes = []api.VoteSummary{d.Summary}
	case api.EventReportDeleted:
		var d api.ReportDeletedData
		if err := msg.Decode(&d); err != nil {
			return Update{}, false, err
		}
		id, err := uuid.Parse(d.SignalID)
		if err != nil {
			return Update{}, false, err
		}
		u.Version = d.Version
		u.DeletedReports = []uuid.UUID{id}
	case api.EventSpikeDetected:
		var sp api.Spike
		if err := msg.Decode(&sp); err != nil {
			return Update{}, false, err
		}
		u.Spikes = []api.Spike{sp}
	case api.EventLocationAlert:
		var a api.LocationAlert
		if err := msg.Decode(&a); err != nil {
			return Update{}, false, err
		}
		u.Alert = &a
		u.Version = 0
	default:
		return Update{}, false, nil
	}
	return u, true, nil
}
