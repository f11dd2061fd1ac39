// Package tracing installs the OpenTelemetry tracer provider used by the
// pruning engine's spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultServiceName = "ctxprune"

// Config controls OTLP/HTTP trace export.
type Config struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRate  float64
	Headers     map[string]string
}

// Provider owns the tracer provider and flushes it on Shutdown.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.TracerProvider
}

// New builds a Provider. When tracing is disabled it returns a no-op provider
// and never dials the collector.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider()}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: creating exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: creating resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(sdk)
	return &Provider{sdk: sdk, tracer: sdk}, nil
}

// sampler maps a sample rate to a sampler; a non-positive rate samples
// everything.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0 || rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns a named tracer from the provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tracer.Tracer(name)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p.sdk != nil }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
