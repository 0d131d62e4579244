// Package metrics exposes Prometheus instrumentation for the ingest
// pipeline and alerting.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for the process.
type Metrics struct {
	registry *prometheus.Registry

	IngestRequests  *prometheus.CounterVec
	IngestDuration  prometheus.Histogram
	EventsStored    *prometheus.CounterVec
	AlertsTriggered *prometheus.CounterVec
}

// New builds and registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		IngestRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightgrid",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Ingest requests by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sightgrid",
			Subsystem: "ingest",
			Name:      "request_duration_seconds",
			Help:      "Ingest request handling latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightgrid",
			Subsystem: "events",
			Name:      "stored_total",
			Help:      "Events persisted, by event type.",
		}, []string{"event_type"}),
		AlertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sightgrid",
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Alert rule evaluations that fired, by rule type.",
		}, []string{"rule_type"}),
	}
	reg.MustRegister(
		m.IngestRequests,
		m.IngestDuration,
		m.EventsStored,
		m.AlertsTriggered,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
