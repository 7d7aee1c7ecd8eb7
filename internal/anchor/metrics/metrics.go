package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the anchoring module.
type Metrics struct {
	// Anchoring outcomes by status (anchored, degraded, skipped, failed)
	AnchorOutcome *prometheus.CounterVec

	// Ledger submission latency by path (primary, fallback)
	AnchorLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all anchoring metrics registered.
func New() *Metrics {
	return &Metrics{
		AnchorOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_anchor_outcomes_total",
			Help: "Total anchoring outcomes by status",
		}, []string{"status"}),

		AnchorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anchorid_anchor_submit_duration_seconds",
			Help:    "Duration of ledger anchor submissions by path",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"path"}),
	}
}

// IncrementOutcome records an anchoring outcome.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.AnchorOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveSubmitLatency records a ledger submission duration.
func (m *Metrics) ObserveSubmitLatency(path string, d time.Duration) {
	if m != nil {
		m.AnchorLatency.WithLabelValues(path).Observe(d.Seconds())
	}
}
