package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTaskCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TaskStarted("run_point_coverage")
	m.TaskStarted("run_point_coverage")
	require.Equal(t, 2.0, testutil.ToFloat64(m.inFlight))

	m.TaskFinished("run_point_coverage", "SUCCESS", 2*time.Second)
	m.TaskFinished("run_point_coverage", "FAILURE", time.Second)
	m.TaskSkipped("run_grid_coverage", "REVOKED")

	require.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("run_point_coverage", "SUCCESS")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("run_point_coverage", "FAILURE")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("run_grid_coverage", "REVOKED")))
	require.Equal(t, 1, testutil.CollectAndCount(m.taskDuration))
}

func TestMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	for _, path := range []string{"/healthz", "/healthz", "/wp-admin", "/.env"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/healthz", "200")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("other", "404")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.TaskSkipped("run_point_coverage", "REVOKED")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `coverage_tasks_total{status="REVOKED",task="run_point_coverage"} 1`)
}
