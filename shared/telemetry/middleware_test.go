package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	metricSDK "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	traceSDK "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := traceSDK.NewTracerProvider(traceSDK.WithSpanProcessor(spans))
	reader := metricSDK.NewManualReader()
	mp := metricSDK.NewMeterProvider(metricSDK.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	tel := NewTelemetryWithProviders(SagaServiceConfig, tp, mp)

	r := chi.NewRouter()
	r.Use(Middleware(tel))
	r.Get("/api/saga/status/{transaction_id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, tel, FromContext(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/saga/status/abc-123", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "HTTP GET /api/saga/status/{transaction_id}", ended[0].Name())

	attrs := attribute.NewSet(ended[0].Attributes()...)
	assert.Equal(t, "/api/saga/status/{transaction_id}", attr(attrs, "http.route"))
	assert.Equal(t, "4xx", attr(attrs, "http.status_class"))

	metrics := collectMetrics(t, reader)
	sum, ok := metrics["http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, "/api/saga/status/{transaction_id}", attr(sum.DataPoints[0].Attributes, "path"))
}

func TestGetStatusClass(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{code: 101, expected: "1xx"},
		{code: 200, expected: "2xx"},
		{code: 302, expected: "3xx"},
		{code: 400, expected: "4xx"},
		{code: 503, expected: "5xx"},
		{code: 0, expected: "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, getStatusClass(tt.code))
	}
}
