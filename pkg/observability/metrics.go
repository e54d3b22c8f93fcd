package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Intercept metrics
	InterceptDecisionsTotal *prometheus.CounterVec
	LoopAbortsTotal         prometheus.Counter

	// Login metrics
	LoginsTotal         *prometheus.CounterVec
	AccountsProvisioned prometheus.Counter

	// Session metrics
	SessionsActive        prometheus.Gauge
	SessionsReapedTotal   prometheus.Counter
	SessionCacheHitsTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorman_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doorman_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		InterceptDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorman_intercept_decisions_total",
				Help: "SSO intercept decisions by outcome",
			},
			[]string{"decision"},
		),
		LoopAbortsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorman_loop_aborts_total",
				Help: "Requests terminated because the login-running cookie was present",
			},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorman_logins_total",
				Help: "SSO login attempts by outcome",
			},
			[]string{"outcome"},
		),
		AccountsProvisioned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorman_accounts_provisioned_total",
				Help: "Local accounts auto-created for first-seen identities",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "doorman_sessions_active",
				Help: "Number of unexpired application sessions",
			},
		),
		SessionsReapedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorman_sessions_reaped_total",
				Help: "Expired sessions removed by the janitor",
			},
		),
		SessionCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorman_session_cache_hits_total",
				Help: "Session lookups served from the in-memory cache",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "doorman_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "doorman_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InterceptDecisionsTotal,
		m.LoopAbortsTotal,
		m.LoginsTotal,
		m.AccountsProvisioned,
		m.SessionsActive,
		m.SessionsReapedTotal,
		m.SessionCacheHitsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records HTTP request metrics
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Middleware records request metrics for every handled request
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.ObserveRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

// statusWriter captures the response status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
