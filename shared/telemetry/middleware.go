package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Middleware injects telemetry into the request context and records
// a span plus request metrics per HTTP call.
func Middleware(tel *Telemetry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := WithTelemetry(r.Context(), tel)

			ctx, span := StartSpan(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.String()),
					attribute.String("http.host", r.Host),
					attribute.String("user_agent", r.UserAgent()),
				),
			)
			defer span.End()

			wrappedWriter := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrappedWriter, r.WithContext(ctx))

			duration := time.Since(start)
			route := routePattern(r)
			statusClass := getStatusClass(wrappedWriter.statusCode)

			span.SetName("HTTP " + r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", wrappedWriter.statusCode),
				attribute.String("http.status_class", statusClass),
			)

			RecordCounter(ctx, "http_requests_total", "Total HTTP requests", 1,
				attribute.String("method", r.Method),
				attribute.String("path", route),
				attribute.Int("status_code", wrappedWriter.statusCode),
				attribute.String("status_class", statusClass),
			)

			RecordHistogram(ctx, "http_request_duration_seconds", "HTTP request duration", duration.Seconds(),
				attribute.String("method", r.Method),
				attribute.String("path", route),
				attribute.String("status_class", statusClass),
			)
		})
	}
}

// routePattern prefers the chi route template so ids don't explode label cardinality
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func getStatusClass(statusCode int) string {
	switch {
	case statusCode >= 100 && statusCode < 200:
		return "1xx"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
