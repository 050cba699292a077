// internal/config/telemetry.go
package config

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// MetricInterval is how often loan counters are pushed to the collector.
const MetricInterval = 30 * time.Second

// SetupTracing installs an OTLP/HTTP tracer provider when an endpoint is
// configured. The returned function flushes and stops it.
func (c *Config) SetupTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	if c.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(c.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(serviceName)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// SetupMetrics installs an OTLP/HTTP meter provider next to the tracer
// provider. The returned function pushes the last readings and stops it.
func (c *Config) SetupMetrics(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	if c.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(c.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(MetricInterval))),
		sdkmetric.WithResource(serviceResource(serviceName)),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

func serviceResource(serviceName string) *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}
