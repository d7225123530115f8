package realtime

import (
	"log/slog"
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/pulse"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
	"github.com/heartmarshall/safety-pulse/internal/wire"
	"github.com/heartmarshall/safety-pulse/pkg/api"
)

type summarizer interface {
	ConfidenceLabel(total int) domain.ConfidenceLabel
	Summary(sig domain.Signal) trust.Summary
}

type broadcaster interface {
	Broadcast(ev Event)
}

// Publisher turns committed report changes into push events.
type Publisher struct {
	log    *slog.Logger
	hub    broadcaster
	scorer summarizer
	agg    *pulse.Aggregator
	recent *EventLog
	now    func() time.Time
}

// NewPublisher creates a Publisher broadcasting on hub. Every broadcast is
// also appended to recent, which may be nil.
func NewPublisher(logger *slog.Logger, hub broadcaster, scorer summarizer, agg *pulse.Aggregator, recent *EventLog) *Publisher {
	return &Publisher{
		log:    logger.With("component", "realtime_publisher"),
		hub:    hub,
		scorer: scorer,
		agg:    agg,
		recent: recent,
		now:    time.Now,
	}
}

// SignalCreated broadcasts a new_report event near the signal.
func (p *Publisher) SignalCreated(sig domain.Signal) {
	report := wire.Report(sig, p.scorer.ConfidenceLabel(sig.TotalVotes()))
	p.publish(api.EventNewReport, api.TopicReportUpdates, sig.Version, report, 0, sig.Location)
}

// SignalDeleted broadcasts a report_deleted event near the signal.
func (p *Publisher) SignalDeleted(sig domain.Signal) {
	data := api.ReportDeletedData{SignalID: sig.ID.String(), TileID: sig.TileKey, Version: sig.Version}
	p.publish(api.EventReportDeleted, api.TopicReportUpdates, sig.Version, data, 0, sig.Location)
}

// VoteChanged broadcasts the signal's vote summary after a vote was cast
// or removed.
func (p *Publisher) VoteChanged(sig domain.Signal, _ domain.Vote, removed bool) {
	data := api.VoteCastData{
		Summary: wire.Summary(sig.ID, p.scorer.Summary(sig), sig.Status, sig.Version),
		Removed: removed,
	}
	p.publish(api.EventVoteCast, api.TopicReportUpdates, sig.Version, data, 0, sig.Location)
}

// TilesChanged broadcasts one pulse_update for all tiles touched by a commit.
func (p *Publisher) TilesChanged(tiles []domain.PulseTile, removed []string, version uint64) {
	locs := make([]domain.Location, 0, len(tiles)+len(removed))
	for _, t := range tiles {
		locs = append(locs, t.Centroid)
	}
	for _, key := range removed {
		locs = append(locs, p.agg.Centroid(key))
	}
	if removed == nil {
		removed = []string{}
	}
	data := api.PulseUpdateData{Tiles: wire.Tiles(tiles), RemovedTiles: removed, Version: version}
	p.publish(api.EventPulseUpdate, api.TopicPulseUpdates, version, data, p.agg.TileRadiusKm(), locs...)
}

// SpikeDetected broadcasts a spike_detected event.
func (p *Publisher) SpikeDetected(spike domain.Spike) {
	p.publish(api.EventSpikeDetected, api.TopicAlerts, spike.Version, wire.Spike(spike), p.agg.TileRadiusKm(), spike.Centroid)
}

func (p *Publisher) publish(typ string, topic api.Topic, version uint64, data any, slackKm float64, locs ...domain.Location) {
	ev, err := NewEvent(typ, topic, version, data, p.now().UTC(), locs...)
	if err != nil {
		p.log.Error("encode event", slog.String("type", typ), slog.String("error", err.Error()))
		return
	}
	ev.SlackKm = slackKm
	p.hub.Broadcast(ev)
	p.recent.Append(ev.Message())
}
