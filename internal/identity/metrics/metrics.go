package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module.
type Metrics struct {
	Registrations      *prometheus.CounterVec
	RegisterDuration   prometheus.Histogram
	ExtractionFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all identity module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_registrations_total",
			Help: "Total enrollment attempts by outcome",
		}, []string{"outcome"}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchorid_register_duration_seconds",
			Help:    "Duration of full enrollment including extraction and anchoring",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ExtractionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_extraction_failures_total",
			Help: "Embedding extraction failures by modality",
		}, []string{"modality"}),
	}
}

// IncrementRegistration records an enrollment attempt outcome.
func (m *Metrics) IncrementRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// ObserveRegister records the duration of an enrollment.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	if m == nil {
		return
	}
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// IncrementExtractionFailure records an extraction failure for a modality.
func (m *Metrics) IncrementExtractionFailure(modality string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.WithLabelValues(modality).Inc()
}
