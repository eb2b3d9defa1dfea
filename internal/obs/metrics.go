package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns every collector of the service on a private registry so tests
// can build as many instances as they like. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	bookings           *prometheus.CounterVec
	loginAttempts      *prometheus.CounterVec
	securityRejections *prometheus.CounterVec
	inquiries          *prometheus.CounterVec
	ready              prometheus.Gauge
	buildInfo          *prometheus.GaugeVec
}

// NewMetrics registers all collectors and records build information.
func NewMetrics(version, commit string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ffb_bookings_total",
			Help: "Booking submissions by urgency and outcome.",
		}, []string{"urgency", "outcome"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ffb_admin_login_attempts_total",
			Help: "Admin login attempts by result.",
		}, []string{"result"}),
		securityRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ffb_security_rejections_total",
			Help: "Requests rejected by the guard, by reason.",
		}, []string{"reason"}),
		inquiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ffb_inquiries_total",
			Help: "Contact and newsletter submissions by kind.",
		}, []string{"kind"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffb_ready",
			Help: "1 when the readiness probe last succeeded.",
		}),
		buildInfo: newBuildInfo(),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.bookings, m.loginAttempts, m.securityRejections, m.inquiries,
		m.ready, m.buildInfo,
	)
	m.buildInfo.WithLabelValues(version, commit).Set(1)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records RPS, latency and in-flight requests. The path label is
// the chi route pattern so ids in URLs do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

func (m *Metrics) ObserveBooking(urgency, outcome string) {
	if m == nil {
		return
	}
	if urgency == "" {
		urgency = "unknown"
	}
	m.bookings.WithLabelValues(urgency, outcome).Inc()
}

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSecurityRejection(reason string) {
	if m == nil {
		return
	}
	m.securityRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveInquiry(kind string) {
	if m == nil {
		return
	}
	m.inquiries.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetReady(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ready.Set(1)
		return
	}
	m.ready.Set(0)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush on the wrapped writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
