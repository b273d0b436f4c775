package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jordanhubbard/cogload"

var (
	// Tracer is the application tracer. It is a no-op until InitTelemetry runs.
	Tracer trace.Tracer = otel.Tracer(instrumentationName)

	// Meter is the application meter
	Meter metric.Meter = otel.Meter(instrumentationName)

	// Custom metrics
	SnapshotsWritten       metric.Int64Counter
	RecommendationsWritten metric.Int64Counter
	AdvisoryFallbacks      metric.Int64Counter
	OrchestrationLatency   metric.Float64Histogram
)

// InitTelemetry initializes OpenTelemetry tracing and metrics
func InitTelemetry(ctx context.Context, serviceName, version, otelEndpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
			attribute.String("component", "cognitive-load"),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	Tracer = otel.Tracer(serviceName)
	Meter = otel.Meter(serviceName)

	if err := initMetrics(); err != nil {
		return nil, err
	}

	log.Printf("[Telemetry] Initialized with endpoint %s", otelEndpoint)

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return traceProvider.Shutdown(shutdownCtx)
	}, nil
}

// initMetrics creates all custom metrics
func initMetrics() error {
	var err error

	SnapshotsWritten, err = Meter.Int64Counter(
		"cogload.snapshots.written",
		metric.WithDescription("Number of cognitive snapshots appended"),
	)
	if err != nil {
		return err
	}

	RecommendationsWritten, err = Meter.Int64Counter(
		"cogload.recommendations.written",
		metric.WithDescription("Number of agent recommendations persisted"),
	)
	if err != nil {
		return err
	}

	AdvisoryFallbacks, err = Meter.Int64Counter(
		"cogload.advisory.fallbacks",
		metric.WithDescription("Agent runs that used the deterministic fallback"),
	)
	if err != nil {
		return err
	}

	OrchestrationLatency, err = Meter.Float64Histogram(
		"cogload.orchestration.latency",
		metric.WithDescription("Orchestrator run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// StartSpan starts a span on the application tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddInt increments an optional counter. Counters are nil until InitTelemetry runs.
func AddInt(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// RecordLatency records into an optional histogram
func RecordLatency(ctx context.Context, h metric.Float64Histogram, d time.Duration, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attrs...))
}
