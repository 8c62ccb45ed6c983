// Package metrics exposes Prometheus metrics for the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mystari/mystari-api/internal/middleware"
)

// Auth operations and outcomes
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpGate     = "gate"
	OpOAuth    = "oauth"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the API's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthTotal       *prometheus.CounterVec
	PanicsTotal     prometheus.Counter
}

// New creates a registry with Go and process collectors plus the API metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mystari_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mystari_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mystari_auth_total",
				Help: "Total number of authentication attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		PanicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mystari_http_panics_total",
			Help: "Total number of handler panics answered with a 500",
		}),
	}

	registry.MustRegister(m.RequestsTotal, m.RequestDuration, m.AuthTotal, m.PanicsTotal)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuth counts one authentication attempt
func (m *Metrics) RecordAuth(operation, outcome string) {
	m.AuthTotal.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request count and latency. Routes are labelled by
// their template so identifiers in paths do not explode cardinality;
// requests without a matched route are labelled "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
