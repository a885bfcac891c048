// Package metrics exposes task and ops-server metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the worker's collectors.
type Metrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coverage_tasks_total",
				Help: "Total number of tasks processed, by final status.",
			},
			[]string{"task", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coverage_task_duration_seconds",
				Help:    "Task execution time in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"task"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coverage_tasks_in_flight",
			Help: "Tasks currently executing on this worker.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coverage_ops_http_requests_total",
				Help: "Total number of ops HTTP requests.",
			},
			[]string{"path", "code"},
		),
	}
	reg.MustRegister(m.tasksTotal, m.taskDuration, m.inFlight, m.httpRequests)
	return m
}

// TaskStarted marks a task as executing.
func (m *Metrics) TaskStarted(task string) {
	m.inFlight.Inc()
}

// TaskFinished records a task's final status and execution time.
func (m *Metrics) TaskFinished(task, status string, elapsed time.Duration) {
	m.inFlight.Dec()
	m.tasksTotal.WithLabelValues(task, status).Inc()
	m.taskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// TaskSkipped counts a task that never executed (revoked or undecodable).
func (m *Metrics) TaskSkipped(task, status string) {
	m.tasksTotal.WithLabelValues(task, status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests to the ops server by path and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		m.httpRequests.WithLabelValues(normalizePath(r.URL.Path), strconv.Itoa(rw.statusCode)).Inc()
	})
}

// normalizePath keeps label cardinality bounded.
func normalizePath(path string) string {
	switch path {
	case "/healthz", "/metrics":
		return path
	}
	return "other"
}
