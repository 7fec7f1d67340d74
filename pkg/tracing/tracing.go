// Package tracing configures OpenTelemetry and records spans around
// orchestration runs and action handlers.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

const instrumentation = "github.com/HarshModi2005/realityspiral"

var (
	mu sync.Mutex
	tp *sdktrace.TracerProvider
)

// Init installs a global tracer provider exporting over OTLP/gRPC. When
// tracing is disabled the global no-op provider stays in place.
func Init(ctx context.Context, cfg config.TracingConfig) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "realityspiral"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
		),
	)
	if err != nil {
		return err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate > 0 && cfg.SampleRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}

	Install(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	))

	logger.InfoCF("tracing", "Tracing enabled", map[string]any{
		"endpoint": cfg.Endpoint,
		"service":  name,
	})
	return nil
}

// Install makes p the global tracer provider.
func Install(p *sdktrace.TracerProvider) {
	mu.Lock()
	tp = p
	mu.Unlock()
	otel.SetTracerProvider(p)
}

// Shutdown flushes and shuts down the installed tracer provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := tp
	tp = nil
	mu.Unlock()
	if p != nil {
		return p.Shutdown(ctx)
	}
	return nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// Start opens a span named name.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
