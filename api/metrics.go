package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each Server carries
// its own registry, so multiple servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	checks           *prometheus.CounterVec
	proofs           *prometheus.CounterVec
	uploads          prometheus.Counter
	challengesIssued prometheus.Counter
}

// NewMetrics creates and registers the server's collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.requestCount = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupow",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	m.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dedupow",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path"},
	)

	m.checks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupow",
			Subsystem: "dedup",
			Name:      "checks_total",
			Help:      "Dedup checks by result (hit = duplicate, miss = new content)",
		},
		[]string{"result"},
	)

	m.proofs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupow",
			Subsystem: "dedup",
			Name:      "proofs_total",
			Help:      "Proof submissions by outcome",
		},
		[]string{"outcome"},
	)

	m.uploads = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dedupow",
			Subsystem: "dedup",
			Name:      "uploads_total",
			Help:      "Successful content registrations",
		},
	)

	m.challengesIssued = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dedupow",
			Subsystem: "dedup",
			Name:      "challenges_issued_total",
			Help:      "Ownership challenges issued",
		},
	)

	return m
}

// Handler serves the exposition endpoint for this server's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
