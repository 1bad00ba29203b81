// Package metrics exposes search and feedback counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	Searches       *prometheus.CounterVec // settled searches by outcome kind, or "error"
	SearchDuration prometheus.Histogram
	Superseded     prometheus.Counter
	Feedback       *prometheus.CounterVec // acknowledged feedback calls by kind
	FeedbackErrors *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "felicity_searches_total",
		Help: "Settled searches by outcome",
	}, []string{"outcome"})

	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "felicity_search_duration_seconds",
		Help:    "Time from search start to settlement",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
	})

	superseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "felicity_searches_superseded_total",
		Help: "Searches replaced by a newer search before settling",
	})

	fb := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "felicity_feedback_total",
		Help: "Feedback calls acknowledged by the service",
	}, []string{"kind"})

	fbErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "felicity_feedback_errors_total",
		Help: "Feedback calls that failed",
	}, []string{"kind"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "felicity_active_sessions",
		Help: "Query sessions currently hosted",
	})

	reg.MustRegister(searches, searchDuration, superseded, fb, fbErrors, active)

	return &Metrics{
		Searches:       searches,
		SearchDuration: searchDuration,
		Superseded:     superseded,
		Feedback:       fb,
		FeedbackErrors: fbErrors,
		ActiveSessions: active,
	}
}
