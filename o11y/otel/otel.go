// Package otel contains an o11y.Provider built on the OpenTelemetry SDK. Spans are
// always written to the console by the texttrace exporter and, when a collector
// address is configured, also exported over OTLP gRPC.
package otel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/robotraconteur/svcharness/o11y"
	"github.com/robotraconteur/svcharness/o11y/otel/texttrace"
)

type Config struct {
	Dataset            string
	GrpcHostAndPort    string
	ResourceAttributes []attribute.KeyValue

	// Writer receives the console output, os.Stdout if nil.
	Writer io.Writer
	// DisableText stops console output. Ignored if no collector is configured.
	DisableText bool
	NoColour    bool

	Metrics o11y.ClosableMetricsProvider
}

type Provider struct {
	metricsProvider o11y.ClosableMetricsProvider
	tracer          trace.Tracer
	tp              *sdktrace.TracerProvider
	annotator       *annotator
}

func New(conf Config) (*Provider, error) {
	w := conf.Writer
	if w == nil {
		w = os.Stdout
	}

	var opts []texttrace.Option
	if conf.NoColour {
		opts = append(opts, texttrace.WithoutColour())
	}

	a := &annotator{}
	traceOptions := []sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(a),
		sdktrace.WithResource(traceResource(conf)),
	}

	if conf.GrpcHostAndPort == "" || !conf.DisableText {
		// synchronous so span lines interleave correctly with the service and client output
		traceOptions = append(traceOptions,
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(texttrace.New(w, opts...))))
	}

	if conf.GrpcHostAndPort != "" {
		grpc, err := newGRPC(context.Background(), conf.GrpcHostAndPort, conf.Dataset)
		if err != nil {
			return nil, err
		}
		traceOptions = append(traceOptions, sdktrace.WithBatcher(grpc))
	}

	tp := sdktrace.NewTracerProvider(traceOptions...)

	return &Provider{
		metricsProvider: conf.Metrics,
		tp:              tp,
		tracer:          tp.Tracer("github.com/robotraconteur/svcharness"),
		annotator:       a,
	}, nil
}

func traceResource(conf Config) *resource.Resource {
	ra := append([]attribute.KeyValue{
		attribute.String("dataset", conf.Dataset),
	}, conf.ResourceAttributes...)

	return resource.NewWithAttributes(semconv.SchemaURL, ra...)
}

func newGRPC(ctx context.Context, endpoint, dataset string) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithHeaders(map[string]string{"x-dataset": dataset}),
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

type spanCtxKey struct{}

func (o *Provider) AddGlobalField(key string, val interface{}) {
	mustValidateKey(key)
	o.annotator.addField(key, val)
}

func (o *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := o.tracer.Start(ctx, name)

	s := o.wrapSpan(span)
	ctx = context.WithValue(ctx, spanCtxKey{}, s)

	return ctx, s
}

// GetSpan returns the active span in the given context. It will return nil if there is no span available.
func (o *Provider) GetSpan(ctx context.Context) o11y.Span {
	if s, ok := ctx.Value(spanCtxKey{}).(*span); ok {
		return s
	}
	return nil
}

func (o *Provider) AddField(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	trace.SpanFromContext(ctx).SetAttributes(attr("app."+key, val))
}

// Log emits a span with no duration carrying the fields.
func (o *Provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := o.StartSpan(ctx, name)
	for _, f := range fields {
		s.AddField(f.Key, f.Value)
	}
	s.End()
}

func (o *Provider) Close(ctx context.Context) {
	// errors here are from flushing to a collector, and there is nowhere left to report them
	_ = o.tp.Shutdown(ctx)
	if o.metricsProvider != nil {
		_ = o.metricsProvider.Close()
	}
}

func (o *Provider) MetricsProvider() o11y.MetricsProvider {
	return o.metricsProvider
}

func (o *Provider) wrapSpan(s trace.Span) *span {
	return &span{
		metricsProvider: o.metricsProvider,
		span:            s,
		start:           time.Now(),
		fields:          map[string]interface{}{},
	}
}

type span struct {
	span            trace.Span
	metrics         []o11y.Metric
	metricsProvider o11y.ClosableMetricsProvider
	start           time.Time
	fields          map[string]interface{}
}

func (s *span) AddField(key string, val interface{}) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val interface{}) {
	mustValidateKey(key)
	s.fields[key] = val
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	s.span.SetAttributes(attr(key, val))
}

// RecordMetric will only emit a metric if End is called specifically
func (s *span) RecordMetric(metric o11y.Metric) {
	s.metrics = append(s.metrics, metric)
}

func (s *span) End() {
	s.sendMetric()
	s.span.End()
}

func (s *span) sendMetric() {
	if s.metricsProvider == nil {
		return
	}
	// insert the expected field for any timing metric
	s.fields["duration_ms"] = time.Since(s.start)
	extractAndSendMetrics(s.metricsProvider)(s.metrics, s.fields)
}

func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}
