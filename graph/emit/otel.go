package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating one OpenTelemetry span per event.
//
// Each span has:
//   - Name: event.Msg (e.g., "node_start", "interrupt")
//   - Attributes: agents.thread_id, agents.graph, agents.step, agents.node
//     and every event.Meta entry
//   - Status: Error when event.Meta["error"] is set
//
// Usage:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	emitter := emit.NewOTelEmitter(tp.Tracer("agents"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter using tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as an instantaneous span. When Meta carries a
// "duration_ms" value the span is back-dated to cover that duration.
func (o *OTelEmitter) Emit(event Event) {
	end := time.Now()
	start := end
	if ms, ok := durationMillis(event.Meta["duration_ms"]); ok {
		start = end.Add(-time.Duration(ms) * time.Millisecond)
	}

	_, span := o.tracer.Start(context.Background(), event.Msg, trace.WithTimestamp(start))
	span.SetAttributes(
		attribute.String("agents.thread_id", event.ThreadID),
		attribute.String("agents.graph", event.Graph),
		attribute.Int("agents.step", event.Step),
		attribute.String("agents.node", event.NodeID),
	)
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute(key, value))
	}
	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
	span.End(trace.WithTimestamp(end))
}

// Flush exports buffered spans when the tracer's provider supports it.
func (o *OTelEmitter) Flush(ctx context.Context, provider trace.TracerProvider) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := provider.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func metaAttribute(key string, value any) attribute.KeyValue {
	key = "agents." + key
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.Int64(key, v.Milliseconds())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

func durationMillis(v any) (int64, bool) {
	switch d := v.(type) {
	case int64:
		return d, true
	case int:
		return int64(d), true
	case float64:
		return int64(d), true
	}
	return 0, false
}
