package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logSpanProcessor writes every finished span to a logger. The CLI has no
// collector to export to, so spans end up next to the rest of the logs.
type logSpanProcessor struct {
	logger *slog.Logger
}

func newLogSpanProcessor(logger *slog.Logger) *logSpanProcessor {
	return &logSpanProcessor{logger: logger}
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := []any{
		slog.String("span", s.Name()),
		slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
	}
	for _, kv := range s.Attributes() {
		attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
	}
	if status := s.Status(); status.Code == codes.Error {
		attrs = append(attrs, slog.String("error", status.Description))
	}
	p.logger.Debug("span finished", attrs...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
