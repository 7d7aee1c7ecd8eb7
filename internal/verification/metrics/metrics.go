package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	Attempts       *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
	FinalScores    prometheus.Histogram
}

// New creates a new Metrics instance with all verification module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_verification_attempts_total",
			Help: "Verification attempts by outcome and document cross-check mode",
		}, []string{"outcome", "doc_mode"}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchorid_verify_duration_seconds",
			Help:    "Duration of full verification including extraction and anchoring",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FinalScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchorid_verification_final_score",
			Help:    "Distribution of fused final scores",
			Buckets: prometheus.LinearBuckets(0, 0.05, 21),
		}),
	}
}

// IncrementAttempt records a verification outcome.
func (m *Metrics) IncrementAttempt(outcome, docMode string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome, docMode).Inc()
}

// ObserveVerify records the duration of a verification.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	if m == nil {
		return
	}
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

// ObserveFinalScore records a fused score.
func (m *Metrics) ObserveFinalScore(score float64) {
	if m == nil {
		return
	}
	m.FinalScores.Observe(score)
}
