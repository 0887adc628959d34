// Package metrics exposes Prometheus collectors for poster runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Runs     *prometheus.CounterVec
	Duration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posterforge",
			Name:      "runs_total",
			Help:      "Poster updates by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "posterforge",
			Name:      "run_duration_seconds",
			Help:      "Time spent on one poster update.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	reg.MustRegister(m.Runs, m.Duration)
	return m
}

func (m *Metrics) ObserveRun(succeeded bool, d time.Duration) {
	outcome := "success"
	if !succeeded {
		outcome = "error"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.Duration.Observe(d.Seconds())
}
