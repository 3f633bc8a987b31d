package otel

import (
	"context"
	"time"

	"github.com/jilio/statesync"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jilio/statesync"
)

// Observability implements statesync.Observability using OpenTelemetry
type Observability struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	syncCounter     metric.Int64Counter
	syncDuration    metric.Float64Histogram
	syncErrors      metric.Int64Counter
	handlerCounter  metric.Int64Counter
	handlerDuration metric.Float64Histogram
	handlerErrors   metric.Int64Counter
}

// Option configures the Observability
type Option func(*Observability)

// WithTracerProvider sets a custom tracer provider
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observability) {
		o.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observability) {
		o.meter = provider.Meter(instrumentationName)
	}
}

// New creates a new OpenTelemetry observability implementation
func New(opts ...Option) (*Observability, error) {
	obs := &Observability{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	for _, opt := range opts {
		opt(obs)
	}

	var err error

	obs.syncCounter, err = obs.meter.Int64Counter(
		"statesync.sync.count",
		metric.WithDescription("Number of binding table evaluation passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	obs.syncDuration, err = obs.meter.Float64Histogram(
		"statesync.sync.duration",
		metric.WithDescription("Evaluation pass duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.syncErrors, err = obs.meter.Int64Counter(
		"statesync.sync.errors",
		metric.WithDescription("Number of failed evaluation passes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	obs.handlerCounter, err = obs.meter.Int64Counter(
		"statesync.handler.count",
		metric.WithDescription("Number of handler executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, err
	}

	obs.handlerDuration, err = obs.meter.Float64Histogram(
		"statesync.handler.duration",
		metric.WithDescription("Handler execution duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.handlerErrors, err = obs.meter.Int64Counter(
		"statesync.handler.errors",
		metric.WithDescription("Number of handler errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return obs, nil
}

// OnSyncStart starts a span for an evaluation pass
func (o *Observability) OnSyncStart(ctx context.Context, reason string, entityKind string) context.Context {
	attrs := []attribute.KeyValue{
		attribute.String("sync.reason", reason),
		attribute.String("entity.kind", entityKind),
	}
	ctx, _ = o.tracer.Start(ctx, "statesync.sync: "+reason, trace.WithAttributes(attrs...))
	o.syncCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx
}

// OnSyncComplete ends the pass span
func (o *Observability) OnSyncComplete(ctx context.Context, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)

	o.syncDuration.Record(ctx, float64(duration.Milliseconds()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.syncErrors.Add(ctx, 1)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// OnHandlerStart starts a span for a single handler call
func (o *Observability) OnHandlerStart(ctx context.Context, event string, handler string) context.Context {
	attrs := []attribute.KeyValue{
		attribute.String("event.name", event),
		attribute.String("handler.name", handler),
	}
	ctx, _ = o.tracer.Start(ctx, "statesync.handler: "+handler, trace.WithAttributes(attrs...))
	o.handlerCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx
}

// OnHandlerComplete ends the handler span
func (o *Observability) OnHandlerComplete(ctx context.Context, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)

	o.handlerDuration.Record(ctx, float64(duration.Milliseconds()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.handlerErrors.Add(ctx, 1)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// Ensure Observability implements statesync.Observability
var _ statesync.Observability = (*Observability)(nil)
