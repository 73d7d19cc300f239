// Package o11y sets up the observability provider for a harness run.
package o11y

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/robotraconteur/svcharness/o11y"
	"github.com/robotraconteur/svcharness/o11y/otel"
)

type Config struct {
	Service string
	Version string
	RunID   string

	// Writer receives the console log lines, os.Stdout if nil
	Writer   io.Writer
	NoColour bool

	GrpcHostAndPort string
	Dataset         string

	Statsd                  string
	StatsNamespace          string
	StatsdTelemetryDisabled bool
}

// Setup is the primary entrypoint to initialise the o11y system. The returned func flushes
// and closes the provider and must be called before the process exits.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	mProv, err := metricsProvider(ctx, o)
	if err != nil {
		return ctx, nil, fmt.Errorf("metrics provider failed: %w", err)
	}

	w := o.Writer
	if w == nil {
		w = os.Stdout
	}

	provider, err := otel.New(otel.Config{
		Dataset:         o.Dataset,
		GrpcHostAndPort: o.GrpcHostAndPort,
		ResourceAttributes: []attribute.KeyValue{
			semconv.ServiceNameKey.String(o.Service),
			semconv.ServiceVersionKey.String(o.Version),
		},
		Writer:   w,
		NoColour: o.NoColour,
		Metrics:  mProv,
	})
	if err != nil {
		_ = mProv.Close()
		return ctx, nil, err
	}

	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)
	if o.RunID != "" {
		provider.AddGlobalField("run_id", o.RunID)
	}

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

func metricsProvider(ctx context.Context, o Config) (o11y.ClosableMetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}

	hostname, _ := os.Hostname()

	tags := []string{
		"service:" + o.Service,
		"version:" + o.Version,
		"hostname:" + hostname,
	}

	statsdOpts := []statsd.Option{
		statsd.WithTags(tags),
	}
	// statsd turns an empty namespace into a leading dot on every metric name
	if o.StatsNamespace != "" {
		statsdOpts = append(statsdOpts, statsd.WithNamespace(o.StatsNamespace))
	}
	if o.StatsdTelemetryDisabled {
		statsdOpts = append(statsdOpts, statsd.WithoutTelemetry())
	}

	var stats *statsd.Client
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 5)
	err := backoff.Retry(func() (err error) {
		stats, err = statsd.New(o.Statsd, statsdOpts...)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	return stats, nil
}
