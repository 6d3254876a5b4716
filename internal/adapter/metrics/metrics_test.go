package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferencesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPreferencesMetrics(reg)

	m.RecordResolution("user_signature")
	m.RecordResolution("unmapped")
	m.RecordResolution("unmapped")
	m.RecordPopulation("session")
	m.RecordTransition("adopted_layout")
	m.SetActiveSessions(3)
	m.RecordSessionEnd("expired")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("unmapped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("user_signature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Populations.WithLabelValues("session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("adopted_layout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionEnds.WithLabelValues("expired")))
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg)

	m.RecordHit("theme", "memory")
	m.RecordMiss("theme", "redis")
	m.RecordInvalidation()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues("theme", "memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses.WithLabelValues("theme", "redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invalidations))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewPreferencesMetrics(reg)
	m.RecordTransition("kept_layout")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portalprefs_preferences_transitions_total{outcome="kept_layout"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "portalprefs_build_info{")
}

func TestHTTPMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/profile", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/api/profile", "/health/live", "/api/profile"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/profile", "2xx")))
	count, err := testutil.GatherAndCount(reg, "portalprefs_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, strings.Contains(dump(t, reg), "/health/live"))
}

func TestHTTPMiddleware_CountsRateLimitedWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.PUT("/api/preferences/profile", func(c echo.Context) error { return c.NoContent(http.StatusTooManyRequests) })
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/preferences/profile", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("/api/preferences/profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("PUT", "/api/preferences/profile", "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(303))
	assert.Equal(t, "5xx", statusClass(502))
	assert.Equal(t, "unknown", statusClass(0))
}

func dump(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var b strings.Builder
	for _, f := range families {
		b.WriteString(f.String())
	}
	return b.String()
}

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.ObserveQuery("SELECT", 0.002, nil)
	m.ObserveQuery("INSERT", 0.004, assert.AnError)
	m.RecordWriteRetry()

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueryErrors.WithLabelValues("SELECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryErrors.WithLabelValues("INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WriteRetries))
}
