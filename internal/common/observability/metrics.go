package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         oteltrace.Tracer

	subsectionCounter  otelmetric.Int64Counter
	subsectionDuration otelmetric.Float64Histogram
	batchCounter       otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	subsectionCounter, _ := meter.Int64Counter(
		"generation.subsections",
		otelmetric.WithDescription("Number of subsections generated"),
	)

	subsectionDuration, _ := meter.Float64Histogram(
		"generation.subsection.duration",
		otelmetric.WithDescription("Subsection generation duration"),
		otelmetric.WithUnit("ms"),
	)

	batchCounter, _ := meter.Int64Counter(
		"generation.batches",
		otelmetric.WithDescription("Number of batch jobs run"),
	)

	o := &Observability{
		meterProvider:      provider,
		meter:              meter,
		subsectionCounter:  subsectionCounter,
		subsectionDuration: subsectionDuration,
		batchCounter:       batchCounter,
	}
	o.tracerProvider, o.tracer = newTracer(serviceName)
	return o
}

// StartSpan opens a child span; the caller must End it.
func (o *Observability) StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	if o.tracer == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name)
}

func (o *Observability) RecordSubsection(ctx context.Context, status string) {
	if o.subsectionCounter != nil {
		o.subsectionCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordSubsectionDuration(ctx context.Context, duration time.Duration, status string) {
	if o.subsectionDuration != nil {
		o.subsectionDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordBatch(ctx context.Context, status string) {
	if o.batchCounter != nil {
		o.batchCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
}
