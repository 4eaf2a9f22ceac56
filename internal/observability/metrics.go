package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters and histograms recorded while rendering,
// executing and introspecting. A nil *Metrics records nothing.
type Metrics struct {
	statementsRendered    metric.Int64Counter
	renderErrors          metric.Int64Counter
	renderDuration        metric.Float64Histogram
	statementsExecuted    metric.Int64Counter
	executionErrors       metric.Int64Counter
	executionDuration     metric.Float64Histogram
	tablesIntrospected    metric.Int64Counter
	introspectionErrors   metric.Int64Counter
	introspectionDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.statementsRendered, err = meter.Int64Counter(
		"lookupsql.statements.rendered",
		metric.WithDescription("Number of statements rendered"),
	); err != nil {
		return nil, fmt.Errorf("failed to create statements rendered counter: %w", err)
	}
	if m.renderErrors, err = meter.Int64Counter(
		"lookupsql.render.errors",
		metric.WithDescription("Number of statements that failed to render"),
	); err != nil {
		return nil, fmt.Errorf("failed to create render error counter: %w", err)
	}
	if m.renderDuration, err = meter.Float64Histogram(
		"lookupsql.render.duration",
		metric.WithDescription("Duration of statement rendering in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create render duration histogram: %w", err)
	}
	if m.statementsExecuted, err = meter.Int64Counter(
		"lookupsql.statements.executed",
		metric.WithDescription("Number of statements sent to the database"),
	); err != nil {
		return nil, fmt.Errorf("failed to create statements executed counter: %w", err)
	}
	if m.executionErrors, err = meter.Int64Counter(
		"lookupsql.execution.errors",
		metric.WithDescription("Number of statements the database rejected"),
	); err != nil {
		return nil, fmt.Errorf("failed to create execution error counter: %w", err)
	}
	if m.executionDuration, err = meter.Float64Histogram(
		"lookupsql.execution.duration",
		metric.WithDescription("Duration of statement execution in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create execution duration histogram: %w", err)
	}
	if m.tablesIntrospected, err = meter.Int64Counter(
		"lookupsql.introspection.tables",
		metric.WithDescription("Number of tables read from the catalog"),
	); err != nil {
		return nil, fmt.Errorf("failed to create introspected tables counter: %w", err)
	}
	if m.introspectionErrors, err = meter.Int64Counter(
		"lookupsql.introspection.errors",
		metric.WithDescription("Number of failed catalog introspections"),
	); err != nil {
		return nil, fmt.Errorf("failed to create introspection error counter: %w", err)
	}
	if m.introspectionDuration, err = meter.Float64Histogram(
		"lookupsql.introspection.duration",
		metric.WithDescription("Duration of catalog introspection in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create introspection duration histogram: %w", err)
	}
	return &m, nil
}

// InitMetrics creates the instruments on the global meter provider.
func InitMetrics(logger *slog.Logger) (*Metrics, error) {
	metrics, err := NewMetrics(otel.Meter("lookupsql"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	logger.Debug("metrics initialized")
	return metrics, nil
}

// RecordRender records one ToSQL call.
func (m *Metrics) RecordRender(ctx context.Context, dialect, mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("dialect", dialect),
		attribute.String("mode", mode),
	)
	m.renderDuration.Record(ctx, milliseconds(duration), attrs)
	if err != nil {
		m.renderErrors.Add(ctx, 1, attrs)
		return
	}
	m.statementsRendered.Add(ctx, 1, attrs)
}

// RecordExecution records one statement round trip.
func (m *Metrics) RecordExecution(ctx context.Context, dialect, mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("dialect", dialect),
		attribute.String("mode", mode),
	)
	m.executionDuration.Record(ctx, milliseconds(duration), attrs)
	if err != nil {
		m.executionErrors.Add(ctx, 1, attrs)
		return
	}
	m.statementsExecuted.Add(ctx, 1, attrs)
}

// RecordIntrospection records one schema read of tables tables.
func (m *Metrics) RecordIntrospection(ctx context.Context, dialect string, tables int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dialect", dialect))
	m.introspectionDuration.Record(ctx, milliseconds(duration), attrs)
	if err != nil {
		m.introspectionErrors.Add(ctx, 1, attrs)
		return
	}
	m.tablesIntrospected.Add(ctx, int64(tables), attrs)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
