package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dewansh/dewhome-core/internal/automation"
)

const metricsNamespace = "dewhome"

// Metrics holds the service's Prometheus collectors. Each Server owns a
// private registry so several servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	stateChanges     *prometheus.CounterVec
	actionExecutions *prometheus.CounterVec
}

// NewMetrics registers request, device and action collectors plus gauges
// that read the registries and hub of s on every scrape.
func NewMetrics(s *Server) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "device_state_changes_total",
			Help:      "Applied device state changes by source.",
		}, []string{"source"}),
		actionExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "action_executions_total",
			Help:      "Recorded action executions by trigger and status.",
		}, []string{"trigger", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.stateChanges,
		m.actionExecutions,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "devices",
			Help:      "Registered devices.",
		}, func() float64 { return float64(s.registry.GetDeviceCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "actions",
			Help:      "Stored actions.",
		}, func() float64 { return float64(s.actions.GetActionCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}, func() float64 { return float64(s.hub.ClientCount()) }),
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) deviceStateChanged(source string) {
	m.stateChanges.WithLabelValues(source).Inc()
}

func (m *Metrics) actionExecuted(exec *automation.Execution) {
	m.actionExecutions.WithLabelValues(string(exec.Trigger), string(exec.Status)).Inc()
}
