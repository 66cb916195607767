// Package metrics exposes Prometheus counters for the distribution server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inspection results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// CatalogMetrics counts archive inspections.
type CatalogMetrics interface {
	IncInspections(result string)
}

// HTTPMetrics captures request metrics for the public handler.
type HTTPMetrics interface {
	ObserveRequest(route, status string, durationSeconds float64)
}

// Noop implements every recorder without emitting anything.
type Noop struct{}

func (Noop) IncInspections(string)                  {}
func (Noop) ObserveRequest(string, string, float64) {}

// Prom implements the recorders with Prometheus collectors.
type Prom struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inspections *prometheus.CounterVec
}

// NewProm creates collectors under namespace and registers them, along with
// the Go runtime and process collectors, on a registry of its own.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route/status",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		inspections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_total",
			Help:      "Archive inspections by result",
		}, []string{"result"}),
	}
	p.registry.MustRegister(
		p.requests,
		p.latency,
		p.inspections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) IncInspections(result string) {
	p.inspections.WithLabelValues(result).Inc()
}

func (p *Prom) ObserveRequest(route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(route, status).Inc()
	p.latency.WithLabelValues(route).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
