package emit

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestBufferedEmitter(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{ThreadID: "t1", Graph: "chat", Step: 1, NodeID: "chat", Msg: MsgNodeStart})
	b.Emit(Event{ThreadID: "t1", Graph: "chat", Step: 1, NodeID: "chat", Msg: MsgNodeEnd})
	b.Emit(Event{ThreadID: "t1", Graph: "chat", Step: 2, NodeID: "reply", Msg: MsgNodeError})
	b.Emit(Event{ThreadID: "t2", Graph: "email", Msg: MsgRunStart})

	t.Run("history per thread", func(t *testing.T) {
		if got := len(b.GetHistory("t1")); got != 3 {
			t.Errorf("t1 events = %d, want 3", got)
		}
		if got := b.GetHistory("missing"); got == nil || len(got) != 0 {
			t.Errorf("missing thread = %#v, want empty slice", got)
		}
	})

	t.Run("filters", func(t *testing.T) {
		two := 2
		tests := []struct {
			name   string
			filter HistoryFilter
			want   int
		}{
			{"by node", HistoryFilter{NodeID: "chat"}, 2},
			{"by msg", HistoryFilter{Msg: MsgNodeError}, 1},
			{"by graph", HistoryFilter{Graph: "email"}, 0},
			{"min step", HistoryFilter{MinStep: &two}, 1},
			{"max step", HistoryFilter{MaxStep: &two, NodeID: "chat"}, 2},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := len(b.GetHistoryWithFilter("t1", tt.filter)); got != tt.want {
					t.Errorf("got %d events, want %d", got, tt.want)
				}
			})
		}
	})

	t.Run("clear", func(t *testing.T) {
		b.Clear("t1")
		if len(b.GetHistory("t1")) != 0 || len(b.GetHistory("t2")) != 1 {
			t.Error("Clear(t1) removed the wrong history")
		}
		b.Clear("")
		if len(b.GetHistory("t2")) != 0 {
			t.Error("Clear(\"\") kept history")
		}
	})

	t.Run("concurrent emit", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.Emit(Event{ThreadID: "c", Msg: MsgNodeEnd})
			}()
		}
		wg.Wait()
		if got := len(b.GetHistory("c")); got != 50 {
			t.Errorf("events = %d, want 50", got)
		}
	})
}

func TestMulti(t *testing.T) {
	a, b := NewBufferedEmitter(), NewBufferedEmitter()
	m := Multi(a, nil, b)
	m.Emit(Event{ThreadID: "t", Msg: MsgRunStart})
	if len(a.GetHistory("t")) != 1 || len(b.GetHistory("t")) != 1 {
		t.Error("Multi did not fan out to every emitter")
	}
}

func TestNullEmitter(t *testing.T) {
	NewNullEmitter().Emit(Event{Msg: MsgRunStart})
}

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	l := NewLogEmitter(logger)

	l.Emit(Event{ThreadID: "t1", Graph: "email_agent", Step: 2, NodeID: "interrupt", Msg: MsgInterrupt})
	l.Emit(Event{ThreadID: "t1", Graph: "email_agent", Step: 1, NodeID: "writeEmail", Msg: MsgNodeEnd})
	l.Emit(Event{ThreadID: "t1", Graph: "email_agent", Msg: MsgRunFailed, Meta: map[string]any{"error": "boom"}})

	out := buf.String()
	if !strings.Contains(out, "level=INFO msg=interrupt thread_id=t1 graph=email_agent step=2 node=interrupt") {
		t.Errorf("interrupt record missing:\n%s", out)
	}
	if strings.Contains(out, "node_end") {
		t.Errorf("debug record logged at info level:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN msg=run_failed") || !strings.Contains(out, "error=boom") {
		t.Errorf("failure record missing:\n%s", out)
	}
}

func TestOTelEmitter(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	o := NewOTelEmitter(tp.Tracer("agents-test"))

	o.Emit(Event{ThreadID: "t1", Graph: "chat", Step: 1, NodeID: "chat", Msg: MsgNodeEnd, Meta: map[string]any{"duration_ms": int64(40)}})
	o.Emit(Event{ThreadID: "t1", Graph: "chat", Step: 1, NodeID: "chat", Msg: MsgNodeError, Meta: map[string]any{"error": "model unavailable"}})

	if err := o.Flush(context.Background(), tp); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}

	ok := spans[0]
	if ok.Name() != MsgNodeEnd {
		t.Errorf("span name = %s", ok.Name())
	}
	if d := ok.EndTime().Sub(ok.StartTime()); d.Milliseconds() != 40 {
		t.Errorf("span duration = %v, want 40ms", d)
	}
	attrs := map[string]string{}
	for _, kv := range ok.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["agents.thread_id"] != "t1" || attrs["agents.node"] != "chat" || attrs["agents.duration_ms"] != "40" {
		t.Errorf("attributes = %v", attrs)
	}

	failed := spans[1]
	if failed.Status().Code != codes.Error || failed.Status().Description != "model unavailable" {
		t.Errorf("status = %+v", failed.Status())
	}
}
