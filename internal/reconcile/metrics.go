package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics contains the Prometheus metrics of a reconcile run.
type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	LastBlock     prometheus.Gauge
	ApplyDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pool_ledger",
			Name:      "events_total",
			Help:      "Events read by the reconciler, labeled by event name and outcome.",
		}, []string{"event", "outcome"}),
		LastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool_ledger",
			Name:      "last_block",
			Help:      "Block number of the last consumed event.",
		}),
		ApplyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pool_ledger",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying one event, including the store commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
	}
}

func (m *Metrics) observe(event, outcome string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) observeApply(event string, started time.Time) {
	if m == nil {
		return
	}
	m.ApplyDuration.WithLabelValues(event).Observe(time.Since(started).Seconds())
}

func (m *Metrics) setBlock(block uint64) {
	if m == nil {
		return
	}
	m.LastBlock.Set(float64(block))
}
