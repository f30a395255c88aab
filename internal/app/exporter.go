package app

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the application log.
type logExporter struct {
	logger *slog.Logger
}

func (x *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		if st := s.Status(); st.Description != "" {
			attrs = append(attrs, "status", st.Description)
		}
		x.logger.DebugContext(ctx, "span "+s.Name(), attrs...)
	}
	return nil
}

func (x *logExporter) Shutdown(context.Context) error { return nil }
