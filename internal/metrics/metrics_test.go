package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// find returns the metric of family name whose labels include want.
func find(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
					break
				}
			}
			if match {
				return m
			}
		}
	}

	t.Fatalf("metric %s %v not found", name, want)
	return nil
}

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest(http.MethodGet, "/api/v1/posts/:id", http.StatusOK, 20*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "/api/v1/posts/:id", http.StatusOK, 30*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	m := find(t, reg, "blog_http_requests_total", map[string]string{
		"method": "GET", "route": "/api/v1/posts/:id", "status": "200",
	})
	assert.Equal(t, 2.0, m.GetCounter().GetValue())

	m = find(t, reg, "blog_http_requests_total", map[string]string{"route": "unmatched", "status": "404"})
	assert.Equal(t, 1.0, m.GetCounter().GetValue())

	h := find(t, reg, "blog_http_request_duration_seconds", map[string]string{"route": "/api/v1/posts/:id"})
	assert.EqualValues(t, 2, h.GetHistogram().GetSampleCount())
}

func TestObserveAuthAndJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveAuth("login", nil)
	c.ObserveAuth("login", errors.New("bad password"))
	c.ObserveAuth("login", errors.New("bad password"))
	c.ObserveJob("tokens:prune", nil)

	m := find(t, reg, "blog_auth_events_total", map[string]string{"event": "login", "outcome": OutcomeFailure})
	assert.Equal(t, 2.0, m.GetCounter().GetValue())

	m = find(t, reg, "blog_auth_events_total", map[string]string{"event": "login", "outcome": OutcomeSuccess})
	assert.Equal(t, 1.0, m.GetCounter().GetValue())

	m = find(t, reg, "blog_jobs_total", map[string]string{"type": "tokens:prune", "outcome": OutcomeSuccess})
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RateLimited()
	c.PanicRecovered()
	c.PanicRecovered()

	assert.Equal(t, 1.0, find(t, reg, "blog_rate_limited_total", nil).GetCounter().GetValue())
	assert.Equal(t, 2.0, find(t, reg, "blog_http_panics_total", nil).GetCounter().GetValue())
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RateLimited()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "blog_rate_limited_total 1")
}
