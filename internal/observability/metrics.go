package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records per-strategy runtime counters and timings.
type Metrics interface {
	IncWarningLogs(strategy string)
	IncErrorLogs(strategy string)
	ObserveTimings(strategy string, cooperativeMs, wallMs float64)
	ResetStrategy(strategy string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the system.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncWarningLogs(string)               {}
func (noopMetrics) IncErrorLogs(string)                 {}
func (noopMetrics) ObserveTimings(string, float64, float64) {}
func (noopMetrics) ResetStrategy(string)                {}

// PrometheusMetrics exposes runtime counters through a Prometheus registry.
type PrometheusMetrics struct {
	registry    *prometheus.Registry
	warningLogs *prometheus.CounterVec
	errorLogs   *prometheus.CounterVec
	elapsed     *prometheus.HistogramVec
	wallElapsed *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the runtime collectors on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	m := &PrometheusMetrics{
		registry: registry,
		warningLogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grasshopper_warning_logs",
			Help: "Number of WARN level logs emitted.",
		}, []string{"strategy"}),
		errorLogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grasshopper_error_logs",
			Help: "Number of ERROR level logs emitted.",
		}, []string{"strategy"}),
		elapsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grasshopper_elapsed",
			Help:    "Milliseconds of cooperative elapsed time of each event loop invocation.",
			Buckets: prometheus.ExponentialBuckets(0.05, 1.075, 99),
		}, []string{"strategy"}),
		wallElapsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grasshopper_wall_elapsed",
			Help:    "Milliseconds of wall elapsed time of each event loop invocation.",
			Buckets: prometheus.ExponentialBuckets(0.1, 1.2, 50),
		}, []string{"strategy"}),
	}
	registry.MustRegister(m.warningLogs, m.errorLogs, m.elapsed, m.wallElapsed)
	return m
}

// IncWarningLogs implements Metrics.
func (m *PrometheusMetrics) IncWarningLogs(strategy string) {
	m.warningLogs.WithLabelValues(strategy).Inc()
}

// IncErrorLogs implements Metrics.
func (m *PrometheusMetrics) IncErrorLogs(strategy string) {
	m.errorLogs.WithLabelValues(strategy).Inc()
}

// ObserveTimings implements Metrics.
func (m *PrometheusMetrics) ObserveTimings(strategy string, cooperativeMs, wallMs float64) {
	m.elapsed.WithLabelValues(strategy).Observe(cooperativeMs)
	m.wallElapsed.WithLabelValues(strategy).Observe(wallMs)
}

// ResetStrategy drops the series belonging to a strategy so a reloaded
// strategy starts from clean counters.
func (m *PrometheusMetrics) ResetStrategy(strategy string) {
	m.warningLogs.DeleteLabelValues(strategy)
	m.errorLogs.DeleteLabelValues(strategy)
	m.elapsed.DeleteLabelValues(strategy)
	m.wallElapsed.DeleteLabelValues(strategy)
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the server fails. Intended to run in
// its own goroutine.
func (m *PrometheusMetrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
