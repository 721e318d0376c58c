package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	metricSDK "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	traceSDK "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	shutdownTimeout      = 5 * time.Second
	otlpMetricInterval   = 30 * time.Second
	unknownServiceName   = "unknown"
	fallbackInstrumentNS = "fallback"
)

// Config holds telemetry configuration for a service
type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is optional; without it only the prometheus exporter runs
	OTLPEndpoint string
}

// Telemetry carries the tracer and meter of one service plus the metric
// instruments created so far, keyed by metric name.
type Telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter
	config Config

	counters   *xsync.MapOf[string, metric.Int64Counter]
	histograms *xsync.MapOf[string, metric.Float64Histogram]
	gauges     *xsync.MapOf[string, metric.Float64Gauge]
}

// fallback serves callers whose context carries no Telemetry. Instruments
// created from the global providers follow whatever provider is installed later.
var fallback = newTelemetry(
	Config{ServiceName: unknownServiceName},
	otel.GetTracerProvider().Tracer(fallbackInstrumentNS),
	otel.GetMeterProvider().Meter(fallbackInstrumentNS),
)

// NewTelemetry creates a telemetry instance backed by the global providers
func NewTelemetry(config Config) *Telemetry {
	return NewTelemetryWithProviders(config, otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewTelemetryWithProviders creates a telemetry instance on explicit providers
func NewTelemetryWithProviders(config Config, tp trace.TracerProvider, mp metric.MeterProvider) *Telemetry {
	return newTelemetry(config, tp.Tracer(config.ServiceName), mp.Meter(config.ServiceName))
}

func newTelemetry(config Config, tracer trace.Tracer, meter metric.Meter) *Telemetry {
	return &Telemetry{
		tracer:     tracer,
		meter:      meter,
		config:     config,
		counters:   xsync.NewMapOf[string, metric.Int64Counter](),
		histograms: xsync.NewMapOf[string, metric.Float64Histogram](),
		gauges:     xsync.NewMapOf[string, metric.Float64Gauge](),
	}
}

// InitTelemetry installs global trace and meter providers. Metrics are always
// exposed through the prometheus exporter; traces and metrics are also pushed
// over OTLP/HTTP when an endpoint is configured.
func InitTelemetry(ctx context.Context, config Config) (*Telemetry, func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build telemetry resource")
	}

	traceProvider, err := setupTracing(ctx, res, config.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}

	meterProvider, err := setupMetrics(ctx, res, config.OTLPEndpoint)
	if err != nil {
		shutdownWithTimeout(traceProvider.Shutdown)
		return nil, nil, err
	}

	otel.SetTracerProvider(traceProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	shutdown := func() {
		shutdownWithTimeout(traceProvider.Shutdown)
		shutdownWithTimeout(meterProvider.Shutdown)
	}

	return NewTelemetryWithProviders(config, traceProvider, meterProvider), shutdown, nil
}

func setupTracing(ctx context.Context, res *resource.Resource, otlpEndpoint string) (*traceSDK.TracerProvider, error) {
	opts := []traceSDK.TracerProviderOption{
		traceSDK.WithResource(res),
		traceSDK.WithSampler(traceSDK.AlwaysSample()),
	}

	if otlpEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(otlpEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create OTLP trace exporter")
		}
		opts = append(opts, traceSDK.WithBatcher(exporter))
	}

	return traceSDK.NewTracerProvider(opts...), nil
}

func setupMetrics(ctx context.Context, res *resource.Resource, otlpEndpoint string) (*metricSDK.MeterProvider, error) {
	// Registers on the default prometheus registry served by /metrics
	prometheusExporter, err := prometheus.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create prometheus exporter")
	}

	opts := []metricSDK.Option{
		metricSDK.WithResource(res),
		metricSDK.WithReader(prometheusExporter),
	}

	if otlpEndpoint != "" {
		otlpExporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(otlpEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create OTLP metric exporter")
		}
		opts = append(opts, metricSDK.WithReader(metricSDK.NewPeriodicReader(otlpExporter,
			metricSDK.WithInterval(otlpMetricInterval),
		)))
	}

	return metricSDK.NewMeterProvider(opts...), nil
}

func shutdownWithTimeout(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		otel.Handle(err)
	}
}

// StartSpan starts a new trace span (method on Telemetry)
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// GetMeter returns the meter instance for creating custom metrics
func (t *Telemetry) GetMeter() metric.Meter {
	return t.meter
}

// GetServiceName returns the service name
func (t *Telemetry) GetServiceName() string {
	return t.config.ServiceName
}

func (t *Telemetry) counter(name, description string) (metric.Int64Counter, bool) {
	return cachedInstrument(t.counters, name, func() (metric.Int64Counter, error) {
		return t.meter.Int64Counter(name, metric.WithDescription(description))
	})
}

func (t *Telemetry) histogram(name, description string) (metric.Float64Histogram, bool) {
	return cachedInstrument(t.histograms, name, func() (metric.Float64Histogram, error) {
		return t.meter.Float64Histogram(name, metric.WithDescription(description))
	})
}

func (t *Telemetry) gauge(name, description string) (metric.Float64Gauge, bool) {
	return cachedInstrument(t.gauges, name, func() (metric.Float64Gauge, error) {
		return t.meter.Float64Gauge(name, metric.WithDescription(description))
	})
}

// cachedInstrument creates an instrument once per name. Creation failures are
// reported to the otel error handler and retried on the next call.
func cachedInstrument[I any](cache *xsync.MapOf[string, I], name string, create func() (I, error)) (I, bool) {
	if instrument, ok := cache.Load(name); ok {
		return instrument, true
	}

	instrument, err := create()
	if err != nil {
		otel.Handle(errors.Wrapf(err, "failed to create instrument %s", name))
		var zero I
		return zero, false
	}

	actual, _ := cache.LoadOrStore(name, instrument)
	return actual, true
}

// Context key for telemetry
type contextKey string

const telemetryKey contextKey = "telemetry"

// WithTelemetry injects telemetry into context
func WithTelemetry(ctx context.Context, tel *Telemetry) context.Context {
	return context.WithValue(ctx, telemetryKey, tel)
}

// FromContext extracts telemetry from context
func FromContext(ctx context.Context) *Telemetry {
	if tel, ok := ctx.Value(telemetryKey).(*Telemetry); ok {
		return tel
	}
	return nil
}

func fromContextOrFallback(ctx context.Context) *Telemetry {
	if tel := FromContext(ctx); tel != nil {
		return tel
	}
	return fallback
}

// StartSpan starts a new trace span using telemetry from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return fromContextOrFallback(ctx).StartSpan(ctx, name, opts...)
}

// GetMeter returns meter from context for creating custom metrics
func GetMeter(ctx context.Context) metric.Meter {
	return fromContextOrFallback(ctx).GetMeter()
}

// GetServiceName returns service name from context
func GetServiceName(ctx context.Context) string {
	return fromContextOrFallback(ctx).GetServiceName()
}

// RecordCounter adds value to the named counter
func RecordCounter(ctx context.Context, name, description string, value int64, attrs ...attribute.KeyValue) {
	tel := fromContextOrFallback(ctx)
	counter, ok := tel.counter(name, description)
	if !ok {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(withService(tel, attrs)...))
}

// RecordHistogram records value on the named histogram
func RecordHistogram(ctx context.Context, name, description string, value float64, attrs ...attribute.KeyValue) {
	tel := fromContextOrFallback(ctx)
	histogram, ok := tel.histogram(name, description)
	if !ok {
		return
	}
	histogram.Record(ctx, value, metric.WithAttributes(withService(tel, attrs)...))
}

// RecordGauge sets the named gauge to value
func RecordGauge(ctx context.Context, name, description string, value float64, attrs ...attribute.KeyValue) {
	tel := fromContextOrFallback(ctx)
	gauge, ok := tel.gauge(name, description)
	if !ok {
		return
	}
	gauge.Record(ctx, value, metric.WithAttributes(withService(tel, attrs)...))
}

func withService(tel *Telemetry, attrs []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+1)
	out = append(out, attrs...)
	return append(out, attribute.String("service", tel.GetServiceName()))
}
