// Package metrics exposes Prometheus metrics for rate limiting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	decisions *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome.",
		}, []string{"class", "outcome"}),
	}
}

func (m *Metrics) ObserveDecision(class, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(class, outcome).Inc()
}
