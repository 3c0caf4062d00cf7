package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newAdminRouter(mw func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mw)
	r.Post("/v2/educationOrganizations/refresh/{instanceId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/v2/jobs/{runId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) map[attribute.Distinct]int64 {
	t.Helper()
	metrics := collect(t, reader, HTTPMetricsMeterName)
	total, ok := metrics["adminapi_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	out := map[attribute.Distinct]int64{}
	for _, dp := range total.DataPoints {
		out[dp.Attributes.Equivalent()] = dp.Value
	}
	return out
}

func httpAttrs(method, route, code string) attribute.Distinct {
	set := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_code", code),
	)
	return set.Equivalent()
}

func TestNewHTTPMetrics(t *testing.T) {
	t.Parallel()

	metrics, err := NewHTTPMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	metrics, err = NewHTTPMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mw, err := MetricsMiddleware(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	router := newAdminRouter(mw)

	requests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/v2/educationOrganizations/refresh/1", http.StatusAccepted},
		{http.MethodPost, "/v2/educationOrganizations/refresh/2", http.StatusAccepted},
		{http.MethodGet, "/v2/jobs/RefreshEducationOrganizationsJob--x_1", http.StatusNotFound},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
	}
	for _, req := range requests {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(req.method, req.path, nil))
		require.Equal(t, req.want, rr.Code, req.path)
	}

	counts := requestCounts(t, reader)
	assert.Equal(t, int64(2), counts[httpAttrs("POST", "/v2/educationOrganizations/refresh/{instanceId}", "202")],
		"ids collapse into the route pattern")
	assert.Equal(t, int64(1), counts[httpAttrs("GET", "/v2/jobs/{runId}", "404")])
	assert.Equal(t, int64(1), counts[httpAttrs("GET", unknownRoute, "404")])

	metrics := collect(t, reader, HTTPMetricsMeterName)
	active, ok := metrics["adminapi_http_active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value, "no request is in flight")
	}
	assert.Contains(t, metrics, "adminapi_http_request_duration_seconds")
}

func TestHTTPMetrics_NilPassesThrough(t *testing.T) {
	t.Parallel()

	var metrics *HTTPMetrics
	rr := httptest.NewRecorder()
	newAdminRouter(metrics.Middleware).ServeHTTP(rr,
		httptest.NewRequest(http.MethodPost, "/v2/educationOrganizations/refresh/3", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestGetRoutePattern(t *testing.T) {
	t.Parallel()

	assert.Equal(t, unknownRoute, getRoutePattern(httptest.NewRequest(http.MethodGet, "/v2/jobs/1", nil)))

	var seen string
	r := chi.NewRouter()
	r.Get("/v2/educationOrganizations/{instanceId}", func(_ http.ResponseWriter, req *http.Request) {
		seen = getRoutePattern(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v2/educationOrganizations/7", nil))
	assert.Equal(t, "/v2/educationOrganizations/{instanceId}", seen)
}
