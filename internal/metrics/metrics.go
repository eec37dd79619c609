// Package metrics exposes the engine's operational telemetry as Prometheus
// collectors, scraped from the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medstaff/sync-service/internal/resilience"
)

// Collector holds every metric the engine reports.
type Collector struct {
	registry *prometheus.Registry

	RecordsSynced *prometheus.CounterVec // trigger: full | incremental | webhook
	RecordsFailed *prometheus.CounterVec
	SyncRuns      *prometheus.CounterVec // trigger + outcome
	RunDuration   *prometheus.HistogramVec
	WebhookEvents *prometheus.CounterVec // result: processed | rejected | failed
	CircuitState  *prometheus.GaugeVec   // per dependency: 0 closed, 1 half-open, 2 open
}

// NewCollector builds and registers all metrics on a private registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		RecordsSynced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_synced_total",
			Help: "Catalog records successfully upserted.",
		}, []string{"trigger"}),
		RecordsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_failed_total",
			Help: "Records that failed to transform or upsert.",
		}, []string{"trigger"}),
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Sync runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Wall-clock duration of sync runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"trigger"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook events by processing result.",
		}, []string{"result"}),
		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upstream_circuit_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open).",
		}, []string{"dependency"}),
	}
}

// ObserveCircuit records the breaker's current state.
func (c *Collector) ObserveCircuit(name string, state resilience.BreakerState) {
	var v float64
	switch state {
	case resilience.StateHalfOpen:
		v = 1
	case resilience.StateOpen:
		v = 2
	}
	c.CircuitState.WithLabelValues(name).Set(v)
}

// Handler serves the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
