// Package metrics holds the Prometheus collectors shared by the generator
// backends. Collectors register with the default registry at init and are
// served by the HTTP layer's /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdgen",
			Subsystem: "generator",
			Name:      "requests_total",
			Help:      "Generation attempts by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	generateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cmdgen",
			Subsystem: "generator",
			Name:      "duration_seconds",
			Help:      "Duration of generation attempts in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"backend"},
	)

	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdgen",
			Subsystem: "generator",
			Name:      "fallback_total",
			Help:      "Hand-offs from a failed or unavailable backend to the next one",
		},
		[]string{"from", "reason"},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdgen",
			Subsystem: "embedded",
			Name:      "model_loads_total",
			Help:      "Executed model load transitions by outcome",
		},
		[]string{"variant", "outcome"},
	)

	modelLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cmdgen",
			Subsystem: "embedded",
			Name:      "model_load_duration_seconds",
			Help:      "Duration of model loads in seconds",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
	)

	remoteAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdgen",
			Subsystem: "remote",
			Name:      "attempts_total",
			Help:      "Remote generation attempts by outcome (ok, retry, fail)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(generateTotal, generateDuration, fallbackTotal, modelLoadsTotal, modelLoadDuration, remoteAttemptsTotal)
}

// ObserveGenerate records one backend attempt.
func ObserveGenerate(backend, outcome string, d time.Duration) {
	generateTotal.WithLabelValues(backend, outcome).Inc()
	generateDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// IncFallback records a hand-off away from backend.
func IncFallback(from, reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	fallbackTotal.WithLabelValues(from, reason).Inc()
}

// ObserveModelLoad records an executed load transition.
func ObserveModelLoad(variant, outcome string, d time.Duration) {
	modelLoadsTotal.WithLabelValues(variant, outcome).Inc()
	if outcome == "ok" {
		modelLoadDuration.Observe(d.Seconds())
	}
}

// IncRemoteAttempt records a remote attempt outcome.
func IncRemoteAttempt(outcome string) {
	remoteAttemptsTotal.WithLabelValues(outcome).Inc()
}
