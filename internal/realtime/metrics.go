package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for push and poll delivery.
type Metrics struct {
	connections prometheus.Gauge
	broadcast   *prometheus.CounterVec
	delivered   prometheus.Counter
	dropped     *prometheus.CounterVec
	polls       *prometheus.CounterVec
	alerts      *prometheus.CounterVec
}

// NewMetrics registers the realtime metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "safetypulse_realtime_connections",
			Help: "Open push subscriptions",
		}),
		broadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_realtime_events_total",
			Help: "Events broadcast by type",
		}, []string{"type"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "safetypulse_realtime_deliveries_total",
			Help: "Event deliveries to individual subscribers",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_realtime_dropped_subscribers_total",
			Help: "Subscribers dropped by reason",
		}, []string{"reason"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_realtime_polls_total",
			Help: "Pull requests by cursor kind",
		}, []string{"cursor"}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_location_alerts_total",
			Help: "Location alerts evaluated by level",
		}, []string{"level"}),
	}
}

// DroppedHeartbeat records a subscriber dropped for missing heartbeats.
func (m *Metrics) DroppedHeartbeat() {
	m.dropped.WithLabelValues("heartbeat").Inc()
}
