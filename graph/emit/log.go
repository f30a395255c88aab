package emit

import (
	"context"
	"log/slog"
)

// LogEmitter implements Emitter by writing each event as a structured log
// record.
//
// Failures (node_error, run_failed) are logged at Warn, run boundaries and
// interrupts at Info, and everything else at Debug.
//
// Example output with a text handler:
//
//	level=DEBUG msg=node_end thread_id=t-1 graph=email_agent step=1 node=writeEmail duration_ms=12
//
// Usage:
//
//	emitter := emit.NewLogEmitter(logger)
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter writing to logger. A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit writes an event as one log record.
func (l *LogEmitter) Emit(event Event) {
	ctx := context.Background()
	level := levelFor(event.Msg)
	if !l.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 4+len(event.Meta))
	attrs = append(attrs, slog.String("thread_id", event.ThreadID), slog.String("graph", event.Graph))
	if event.Step > 0 {
		attrs = append(attrs, slog.Int("step", event.Step))
	}
	if event.NodeID != "" {
		attrs = append(attrs, slog.String("node", event.NodeID))
	}
	for k, v := range event.Meta {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.LogAttrs(ctx, level, event.Msg, attrs...)
}

func levelFor(msg string) slog.Level {
	switch msg {
	case MsgNodeError, MsgRunFailed:
		return slog.LevelWarn
	case MsgRunStart, MsgRunComplete, MsgInterrupt, MsgResume:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
