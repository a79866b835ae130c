// Package metrics exposes Prometheus collectors for the HTTP transport and
// the dispatcher. Each Metrics value owns its registry.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// UnmatchedRoute labels dispatches that matched no route.
	UnmatchedRoute = "unmatched"
	// UnknownMethod labels dispatches with a non-standard method.
	UnknownMethod = "unknown"
)

type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: common.ServiceName,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: common.ServiceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"code", "method"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: common.ServiceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: common.ServiceName,
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by route and outcome.",
		}, []string{"method", "route", "status"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: common.ServiceName,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time spent in route handlers.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "route"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.dispatches,
		m.dispatchDuration,
	)
	return m
}

// InstrumentHandler wraps next with in-flight, count and latency collectors.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.httpInFlight,
		promhttp.InstrumentHandlerCounter(m.httpRequests,
			promhttp.InstrumentHandlerDuration(m.httpDuration, next),
		),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveDispatch records one dispatcher outcome. Methods outside the
// standard set are counted as UnknownMethod.
func (m *Metrics) ObserveDispatch(method, route string, status envelope.Status, elapsed time.Duration) {
	if route == "" {
		route = UnmatchedRoute
	}
	method = sanitizeMethod(method)
	m.dispatches.WithLabelValues(method, route, status.String()).Inc()
	m.dispatchDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// sanitizeMethod keeps the method label bounded: dispatch methods come from
// client payloads on the TCP and gRPC transports.
func sanitizeMethod(method string) string {
	switch m := strings.ToUpper(method); m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return m
	}
	return UnknownMethod
}
