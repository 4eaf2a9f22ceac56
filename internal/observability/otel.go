// Package observability wires OpenTelemetry metrics and tracing for statement
// rendering, execution and catalog introspection. Metrics are exported
// through a private Prometheus registry so they can be dumped as text.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName      string
	ServiceVersion   string
	TraceSampleRatio float64
	OTLP             OTLPConfig
}

func newResource(cfg Config) (*resource.Resource, error) {
	// Without a schema URL so the merge with resource.Default cannot conflict.
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
}

// MeterProvider wraps the OpenTelemetry meter provider
type MeterProvider struct {
	provider *metric.MeterProvider
	exporter *prometheus.Exporter
	registry *promclient.Registry
}

// InitMeterProvider initializes OpenTelemetry metrics with a Prometheus
// exporter bound to its own registry, and installs it globally.
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return &MeterProvider{
		provider: provider,
		exporter: exporter,
		registry: registry,
	}, nil
}

// Meter returns a meter from this provider rather than the global one.
func (mp *MeterProvider) Meter(name string) otelmetric.Meter {
	return mp.provider.Meter(name)
}

// Gatherer exposes the registry the exporter writes to.
func (mp *MeterProvider) Gatherer() promclient.Gatherer {
	return mp.registry
}

// Shutdown gracefully shuts down the meter provider
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown meter provider", slog.String("error", err.Error()))
		return err
	}

	logger.Debug("meter provider shutdown successfully")
	return nil
}

// TracerProvider wraps the OpenTelemetry tracer provider
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracerProvider installs a global tracer provider. Spans are batched
// to the OTLP endpoint when one is configured and written to logger at
// debug level otherwise.
func InitTracerProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*TracerProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	processor := sdktrace.SpanProcessor(newLogSpanProcessor(logger))
	if cfg.OTLP.Enabled() {
		exporter, err := newSpanExporter(ctx, cfg.OTLP)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(traceSamplerForRatio(cfg.TraceSampleRatio)),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider}, nil
}

// Tracer returns a tracer from this provider rather than the global one.
func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.provider.Tracer(name)
}

func traceSamplerForRatio(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := tp.provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		return err
	}

	logger.Debug("tracer provider shutdown successfully")
	return nil
}
