package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pos_inventory"

// Metrics is safe to use as a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	movements      *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	lockRetries    prometheus.Counter
	events         *prometheus.CounterVec
	drift          prometheus.Gauge
	applyDurations prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_applied_total",
			Help:      "Stock movements committed to the ledger.",
		}, []string{"type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Operations rejected for insufficient stock.",
		}, []string{"stage"}),
		lockRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_retries_total",
			Help:      "Movement attempts retried after a snapshot lock timeout.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound events by outcome.",
		}, []string{"type", "outcome"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drift_rows",
			Help:      "Snapshot rows disagreeing with the ledger at the last reconciliation.",
		}),
		applyDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_apply_seconds",
			Help:      "Time spent applying a movement, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.movements, m.rejections, m.lockRetries, m.events, m.drift, m.applyDurations)
	}
	return m
}

func (m *Metrics) MovementApplied(movementType string, seconds float64) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(movementType).Inc()
	m.applyDurations.Observe(seconds)
}

// StockRejected counts a shortage; stage is "precheck" or "commit".
func (m *Metrics) StockRejected(stage string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(stage).Inc()
}

func (m *Metrics) LockRetried() {
	if m == nil {
		return
	}
	m.lockRetries.Inc()
}

func (m *Metrics) EventReceived(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) DriftObserved(rows int) {
	if m == nil {
		return
	}
	m.drift.Set(float64(rows))
}
