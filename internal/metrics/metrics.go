// Package metrics exposes Prometheus collectors for the HTTP layer, the
// record stores and the spreadsheet backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so tests and multiple servers in one process
// do not collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	StoreOpsTotal    *prometheus.CounterVec
	StoreOpDuration  *prometheus.HistogramVec
	BackendCallTotal *prometheus.CounterVec
	BackendDuration  *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	UploadsTotal    *prometheus.CounterVec
	AuditWriteFails prometheus.Counter
}

// NewCollector registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		StoreOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Record store operations by sheet, operation and outcome.",
		}, []string{"sheet", "op", "outcome"}),

		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Record store operation latency, including every backend round trip.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"sheet", "op"}),

		BackendCallTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sheets",
			Name:      "calls_total",
			Help:      "Spreadsheet API calls by call and outcome.",
		}, []string{"call", "outcome"}),

		BackendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sheets",
			Name:      "call_duration_seconds",
			Help:      "Spreadsheet API call latency.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"call"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sheets",
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"breaker"}),

		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachments",
			Name:      "uploads_total",
			Help:      "Attachment uploads by outcome.",
		}, []string{"outcome"}),

		AuditWriteFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit entries that could not be written. Alert if non-zero.",
		}),
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveStoreOp implements sheetstore.Observer.
func (c *Collector) ObserveStoreOp(store, op, outcome string, elapsed time.Duration) {
	c.StoreOpsTotal.WithLabelValues(store, op, outcome).Inc()
	c.StoreOpDuration.WithLabelValues(store, op).Observe(elapsed.Seconds())
}

// ObserveBackendCall implements sheets.Observer.
func (c *Collector) ObserveBackendCall(call, outcome string, elapsed time.Duration) {
	c.BackendCallTotal.WithLabelValues(call, outcome).Inc()
	c.BackendDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

// SetBreakerState implements sheets.Observer.
func (c *Collector) SetBreakerState(name string, state int) {
	c.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveUpload counts one attachment upload.
func (c *Collector) ObserveUpload(outcome string) {
	c.UploadsTotal.WithLabelValues(outcome).Inc()
}

// AuditWriteFailed counts one lost audit entry.
func (c *Collector) AuditWriteFailed() {
	c.AuditWriteFails.Inc()
}
