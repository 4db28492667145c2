// Package metrics exposes the console's Prometheus collectors.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aifactory_console"

// Metrics represents the collection of all console metrics. It satisfies
// page.Observer and api.Observer.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	PagesMounted           *prometheus.GaugeVec
	RefreshTicks           *prometheus.CounterVec
	FetchesDiscarded       *prometheus.CounterVec
	LiveConnections        prometheus.Gauge
	SessionsSwept          prometheus.Counter
	Logins                 *prometheus.CounterVec
}

// NewMetrics creates all collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend API calls",
		},
		[]string{"target", "method", "status"},
	)

	m.BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	m.PagesMounted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_mounted",
			Help:      "Number of currently mounted pages",
		},
		[]string{"page"},
	)

	m.RefreshTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_refresh_ticks_total",
			Help:      "Total number of auto-refresh ticks",
		},
		[]string{"page"},
	)

	m.FetchesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_discarded_total",
			Help:      "Fetch results dropped because the page moved on",
		},
		[]string{"page", "resource"},
	)

	m.LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Number of open live page connections",
		},
	)

	m.SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Total number of expired sessions removed",
		},
	)

	m.Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.PagesMounted,
		m.RefreshTicks,
		m.FetchesDiscarded,
		m.LiveConnections,
		m.SessionsSwept,
		m.Logins,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// PageMounted implements page.Observer.
func (m *Metrics) PageMounted(name string) { m.PagesMounted.WithLabelValues(name).Inc() }

// PageUnmounted implements page.Observer.
func (m *Metrics) PageUnmounted(name string) { m.PagesMounted.WithLabelValues(name).Dec() }

// RefreshTick implements page.Observer.
func (m *Metrics) RefreshTick(name string) { m.RefreshTicks.WithLabelValues(name).Inc() }

// FetchDiscarded implements page.Observer.
func (m *Metrics) FetchDiscarded(name, resource string) {
	m.FetchesDiscarded.WithLabelValues(name, resource).Inc()
}

// ObserveRequest implements api.Observer. Status 0 means the backend was
// unreachable.
func (m *Metrics) ObserveRequest(target, method string, status int, d time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(target, method, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(target).Observe(d.Seconds())
}

// RequestTrackingMiddleware records every HTTP request by its chi route
// pattern, so path parameters do not explode the label set.
func (m *Metrics) RequestTrackingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter is a wrapper to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack passes through to the underlying writer for the live endpoint.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
