package application

import (
	"context"
	"time"

	"github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// observe opens a span for a resource operation and returns a finish func
// recording the outcome counter and latency histogram.
func observe(ctx context.Context, resource domain.ResourceType, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span, func(err error)) {
	start := time.Now()
	attrs = append(attrs,
		attribute.String("resource", string(resource)),
		attribute.String("operation", operation),
	)
	ctx, span := telemetry.StartSpan(ctx, string(resource)+"."+operation, trace.WithAttributes(attrs...))

	return ctx, span, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
		}
		telemetry.RecordCounter(ctx, "resource_operations_total", "Total resource service operations", 1,
			attribute.String("resource", string(resource)),
			attribute.String("operation", operation),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "resource_operation_duration_seconds", "Resource service operation duration", time.Since(start).Seconds(),
			attribute.String("resource", string(resource)),
			attribute.String("operation", operation),
		)
		span.End()
	}
}
