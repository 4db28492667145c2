package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	// Each call has its own registry, so building twice must not panic.
	m := NewMetrics()
	_ = NewMetrics()

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.BackendRequestsTotal)
	assert.NotNil(t, m.PagesMounted)
	assert.NotNil(t, m.Registry())
}

func TestObserverMethods(t *testing.T) {
	m := NewMetrics()

	m.PageMounted("clients")
	m.PageMounted("clients")
	m.PageUnmounted("clients")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.PagesMounted.WithLabelValues("clients")))

	m.RefreshTick("clients")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RefreshTicks.WithLabelValues("clients")))

	m.FetchDiscarded("clients", "clients")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.FetchesDiscarded.WithLabelValues("clients", "clients")))

	m.ObserveRequest("kam", http.MethodGet, 0, 10*time.Millisecond)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.BackendRequestsTotal.WithLabelValues("kam", "GET", "0")))
}

func TestRequestTrackingMiddleware(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.RequestTrackingMiddleware)
	r.Get("/clients/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, id := range []string{"a", "b"} {
		resp, err := http.Get(ts.URL + "/clients/" + id)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/clients/{id}", "418")))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.SessionsSwept.Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), "aifactory_console_sessions_swept_total 2"))
}
