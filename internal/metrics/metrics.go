// Package metrics collects Prometheus metrics about path resolutions and the
// HTTP surface. Every [Metrics] has its own registry, so that several can
// exist side by side.
package metrics

import (
	"net/http"
	"time"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filebox"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Resolution metrics
	ResolvesTotal   *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	Violations      prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New returns a pointer to a new [Metrics], with the Go runtime and process
// collectors registered alongside.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolves_total",
				Help:      "Total number of path resolutions by outcome",
			},
			[]string{"result"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_duration_seconds",
				Help:      "Path resolution duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
		),
		Violations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "containment_violations_total",
				Help:      "Total number of paths rejected for leaving the root",
			},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ResolvesTotal,
		m.ResolveDuration,
		m.Violations,
		m.RequestsTotal,
		m.RequestDuration,
	)

	return m
}

// ObserveResolve records the outcome of a single path resolution. The result
// label is "ok" for a success and the name of the [schema.Kind] otherwise.
func (m *Metrics) ObserveResolve(kind schema.Kind, success bool, took time.Duration) {
	result := "ok"
	if !success {
		result = kind.String()
	}

	m.ResolvesTotal.WithLabelValues(result).Inc()
	m.ResolveDuration.Observe(took.Seconds())

	if kind == schema.KindContainmentViolation {
		m.Violations.Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an [http.Handler] exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
