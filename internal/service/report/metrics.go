package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the write pipeline.
type Metrics struct {
	submissions  *prometheus.CounterVec
	votes        *prometheus.CounterVec
	deletions    prometheus.Counter
	expired      prometheus.Counter
	rejections   *prometheus.CounterVec
	flagged      *prometheus.CounterVec
	commitFailed prometheus.Counter
	commitTime   prometheus.Histogram
	tileVersion  prometheus.Gauge
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_signals_submitted_total",
			Help: "Accepted signal submissions by type",
		}, []string{"type"}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_votes_total",
			Help: "Votes cast and removed",
		}, []string{"action"}),
		deletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "safetypulse_signals_deleted_total",
			Help: "Signals deleted by their owner",
		}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Name: "safetypulse_signals_expired_total",
			Help: "Signals moved to expired by the sweeper",
		}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_rejections_total",
			Help: "Requests rejected by kind",
		}, []string{"kind"}),
		flagged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safetypulse_abuse_flags_total",
			Help: "Abuse flags attached to submissions",
		}, []string{"flag"}),
		commitFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "safetypulse_commit_failures_total",
			Help: "Write pipeline transactions that were rolled back",
		}),
		commitTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "safetypulse_commit_duration_seconds",
			Help:    "Duration of write pipeline transactions",
			Buckets: prometheus.DefBuckets,
		}),
		tileVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "safetypulse_pulse_version",
			Help: "Latest published pulse version",
		}),
	}
}
