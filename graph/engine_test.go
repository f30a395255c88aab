package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/langgraph-agents/graph/emit"
	"github.com/dshills/langgraph-agents/graph/store"
	"github.com/dshills/langgraph-agents/graph/ui"
)

type review struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

var (
	counterField  = ReplaceField[int]("counter")
	logField      = AppendField[string]("log")
	topicField    = OptionalField[string]("topic")
	responseField = ReplaceField[*review]("response")
)

func testSchema() *Schema {
	return MustSchema("test", counterField, logField, topicField, responseField)
}

// appendNode records its own name in the log field.
func appendNode(name string) Node {
	return NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
		return Continue(logField.Set([]string{name}))
	})
}

func increment() Node {
	return NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
		return Continue(counterField.Set(counterField.Get(s) + 1))
	})
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	e, err := New(st, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, st
}

func mustCompile(t *testing.T, b *Builder) *CompiledGraph {
	t.Helper()
	g, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return g
}

func TestNew(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		if _, err := New(nil); err == nil {
			t.Fatal("expected error for nil store")
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		cases := map[string]Option{
			"max steps":      WithMaxSteps(0),
			"max concurrent": WithMaxConcurrent(-1),
			"timeout":        WithDefaultNodeTimeout(-time.Second),
			"emitter":        WithEmitter(nil),
			"logger":         WithLogger(nil),
		}
		for name, opt := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := New(store.NewMemStore(), opt)
				var ee *EngineError
				if !errors.As(err, &ee) || ee.Code != "INVALID_OPTION" {
					t.Fatalf("expected INVALID_OPTION, got %v", err)
				}
			})
		}
	})
}

func TestEngine_CounterLoop(t *testing.T) {
	// A increments, B routes back to A until the counter reaches 3.
	g := mustCompile(t, NewBuilder("counter", testSchema()).
		AddNode("A", increment()).
		AddNode("B", appendNode("B")).
		AddEdge(Start, "A").
		AddEdge("A", "B").
		AddConditionalEdges("B", func(s State, _ Config) string {
			if counterField.Get(s) < 3 {
				return "A"
			}
			return End
		}, "A"))

	e, _ := newTestEngine(t)
	res, err := e.Run(context.Background(), g, nil, Config{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Status)
	}
	if got := counterField.Get(res.State); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}
	if res.Steps != 6 {
		t.Errorf("steps = %d, want 6", res.Steps)
	}
	if got := logField.Get(res.State); len(got) != 3 {
		t.Errorf("log = %v, want three entries", got)
	}

	cp, err := e.Checkpoint(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.Status != store.StatusCompleted || cp.StepCount != 6 {
		t.Errorf("checkpoint = %s/%d, want COMPLETED/6", cp.Status, cp.StepCount)
	}
}

func TestEngine_ParallelMergeOrder(t *testing.T) {
	// The later-declared nodes finish first; merge order must still follow
	// declaration order.
	delayed := func(name string, d time.Duration) Node {
		return NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
			time.Sleep(d)
			return Continue(logField.Set([]string{name}))
		})
	}
	var joins atomic.Int32
	join := NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
		joins.Add(1)
		return Continue(logField.Set([]string{"D"}))
	})

	g := mustCompile(t, NewBuilder("fanout", testSchema()).
		AddNode("A", delayed("A", 30*time.Millisecond)).
		AddNode("B", delayed("B", 15*time.Millisecond)).
		AddNode("C", delayed("C", 0)).
		AddNode("D", join).
		AddEdge(Start, "C").
		AddEdge(Start, "A").
		AddEdge(Start, "B").
		AddEdge("A", "D").
		AddEdge("B", "D").
		AddEdge("C", "D"))

	e, _ := newTestEngine(t)
	res, err := e.Run(context.Background(), g, nil, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"A", "B", "C", "D"}
	if got := logField.Get(res.State); !reflect.DeepEqual(got, want) {
		t.Errorf("log = %v, want %v", got, want)
	}
	if joins.Load() != 1 {
		t.Errorf("join node ran %d times, want 1", joins.Load())
	}
	if res.Steps != 2 {
		t.Errorf("steps = %d, want 2", res.Steps)
	}
}

func TestEngine_MaxConcurrent(t *testing.T) {
	var inflight, peak atomic.Int32
	slow := NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return Continue(nil)
	})
	b := NewBuilder("limited", testSchema())
	for _, n := range []string{"a", "b", "c", "d"} {
		b.AddNode(n, slow).AddEdge(Start, n)
	}
	g := mustCompile(t, b)

	e, _ := newTestEngine(t, WithMaxConcurrent(2))
	if _, err := e.Run(context.Background(), g, nil, Config{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestEngine_Deterministic(t *testing.T) {
	g := mustCompile(t, NewBuilder("det", testSchema()).
		AddNode("A", appendNode("A")).
		AddNode("B", appendNode("B")).
		AddNode("C", increment()).
		AddEdge(Start, "A").
		AddEdge(Start, "B").
		AddEdge("A", "C").
		AddEdge("B", "C"))

	e, _ := newTestEngine(t)
	var states []map[string]any
	for i := 0; i < 5; i++ {
		res, err := e.Run(context.Background(), g, topicField.Set("x"), Config{})
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		states = append(states, res.State.Map())
	}
	for i := 1; i < len(states); i++ {
		if !reflect.DeepEqual(states[0], states[i]) {
			t.Fatalf("run %d state %v differs from %v", i, states[i], states[0])
		}
	}
}

func TestEngine_StepBudget(t *testing.T) {
	g := mustCompile(t, NewBuilder("cycle", testSchema()).
		AddNode("A", increment()).
		AddEdge(Start, "A").
		AddEdge("A", "A"))

	e, _ := newTestEngine(t, WithMaxSteps(5))
	res, err := e.Run(context.Background(), g, nil, Config{ThreadID: "budget"})
	if !errors.Is(err, ErrStepBudgetExceeded) {
		t.Fatalf("err = %v, want ErrStepBudgetExceeded", err)
	}
	var sb *StepBudgetExceededError
	if !errors.As(err, &sb) || sb.MaxSteps != 5 {
		t.Fatalf("expected StepBudgetExceededError with MaxSteps 5, got %v", err)
	}
	if res == nil || res.Status != StatusFailed {
		t.Fatalf("expected FAILED result, got %+v", res)
	}
	if res.Steps != 5 || counterField.Get(res.State) != 5 {
		t.Errorf("steps = %d counter = %d, want 5/5", res.Steps, counterField.Get(res.State))
	}
}

func TestEngine_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		node     Node
		wantIs   error
		wantNode string
	}{
		{
			name: "undeclared field",
			node: NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
				return Continue(Update{"bogus": 1})
			}),
			wantIs:   ErrSchemaViolation,
			wantNode: "A",
		},
		{
			name: "wrong type",
			node: NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
				return Continue(Update{"counter": "three"})
			}),
			wantIs:   ErrSchemaViolation,
			wantNode: "A",
		},
		{
			name: "node error",
			node: NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
				return Fail(boom)
			}),
			wantIs:   boom,
			wantNode: "A",
		},
		{
			name: "panic",
			node: NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
				panic("kaboom")
			}),
			wantIs:   ErrNodeExecution,
			wantNode: "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustCompile(t, NewBuilder("fail", testSchema()).
				AddNode("A", tt.node).
				AddEdge(Start, "A"))
			e, _ := newTestEngine(t)

			res, err := e.Run(context.Background(), g, counterField.Set(7), Config{ThreadID: "f"})
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v, want %v", err, tt.wantIs)
			}
			if res.Status != StatusFailed {
				t.Fatalf("status = %s, want FAILED", res.Status)
			}
			if counterField.Get(res.State) != 7 {
				t.Errorf("state was modified by failed step: %v", res.State.Map())
			}

			cp, err := e.Checkpoint(context.Background(), "f")
			if err != nil {
				t.Fatalf("Checkpoint: %v", err)
			}
			if cp.Status != store.StatusFailed || cp.Failure == nil || cp.Failure.Node != tt.wantNode {
				t.Errorf("checkpoint = %s %+v, want FAILED at %s", cp.Status, cp.Failure, tt.wantNode)
			}
		})
	}

	t.Run("schema violation names node", func(t *testing.T) {
		g := mustCompile(t, NewBuilder("sv", testSchema()).
			AddNode("writer", NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
				return Continue(Update{"nope": true})
			})).
			AddEdge(Start, "writer"))
		e, _ := newTestEngine(t)
		_, err := e.Run(context.Background(), g, nil, Config{})
		var sv *SchemaViolationError
		if !errors.As(err, &sv) {
			t.Fatalf("expected SchemaViolationError, got %v", err)
		}
		if sv.Node != "writer" || sv.Field != "nope" {
			t.Errorf("violation = %+v", sv)
		}
	})
}

func TestEngine_RoutingError(t *testing.T) {
	t.Run("value outside candidates", func(t *testing.T) {
		g := mustCompile(t, NewBuilder("route", testSchema()).
			AddNode("A", increment()).
			AddNode("B", increment()).
			AddEdge(Start, "A").
			AddConditionalEdges("A", func(State, Config) string { return "Z" }, "B"))
		e, _ := newTestEngine(t)

		res, err := e.Run(context.Background(), g, nil, Config{})
		var re *RoutingError
		if !errors.As(err, &re) {
			t.Fatalf("expected RoutingError, got %v", err)
		}
		if re.Node != "A" || re.Value != "Z" {
			t.Errorf("routing error = %+v", re)
		}
		if res.Status != StatusFailed {
			t.Errorf("status = %s, want FAILED", res.Status)
		}
		// A's update is merged before routing.
		if counterField.Get(res.State) != 1 {
			t.Errorf("counter = %d, want 1", counterField.Get(res.State))
		}
	})

	t.Run("router panic", func(t *testing.T) {
		g := mustCompile(t, NewBuilder("route", testSchema()).
			AddNode("A", increment()).
			AddEdge(Start, "A").
			AddConditionalEdges("A", func(State, Config) string { panic("bad router") }, End))
		e, _ := newTestEngine(t)
		_, err := e.Run(context.Background(), g, nil, Config{})
		if !errors.Is(err, ErrRouting) {
			t.Fatalf("err = %v, want ErrRouting", err)
		}
	})

	t.Run("start router", func(t *testing.T) {
		g := mustCompile(t, NewBuilder("start", testSchema()).
			AddNode("A", appendNode("A")).
			AddNode("B", appendNode("B")).
			AddConditionalEdges(Start, func(s State, _ Config) string {
				if topicField.Get(s) != "" {
					return "B"
				}
				return "A"
			}, "A", "B"))
		e, _ := newTestEngine(t)
		res, err := e.Run(context.Background(), g, topicField.Set("x"), Config{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := logField.Get(res.State); !reflect.DeepEqual(got, []string{"B"}) {
			t.Errorf("log = %v, want [B]", got)
		}
	})
}

func TestEngine_ImplicitEnd(t *testing.T) {
	g := mustCompile(t, NewBuilder("implicit", testSchema()).
		AddNode("only", increment()).
		AddEdge(Start, "only"))
	e, _ := newTestEngine(t)
	res, err := e.Run(context.Background(), g, nil, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCompleted || res.Steps != 1 {
		t.Errorf("result = %s/%d, want COMPLETED/1", res.Status, res.Steps)
	}
}

func TestEngine_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := mustCompile(t, NewBuilder("cancel", testSchema()).
		AddNode("A", NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
			cancel()
			return Continue(counterField.Set(1))
		})).
		AddNode("B", increment()).
		AddEdge(Start, "A").
		AddEdge("A", "B"))
	e, _ := newTestEngine(t)

	res, err := e.Run(ctx, g, nil, Config{ThreadID: "c"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Status != StatusFailed || counterField.Get(res.State) != 1 {
		t.Errorf("result = %s counter %d, want FAILED after A", res.Status, counterField.Get(res.State))
	}

	// The terminal record is written even though ctx is done.
	cp, err := e.Checkpoint(context.Background(), "c")
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.Status != store.StatusFailed {
		t.Errorf("checkpoint status = %s, want FAILED", cp.Status)
	}
}

func TestEngine_ContinuesCompletedThread(t *testing.T) {
	g := mustCompile(t, NewBuilder("chat", testSchema()).
		AddNode("reply", appendNode("reply")).
		AddEdge(Start, "reply"))
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Run(ctx, g, logField.Set([]string{"hi"}), Config{ThreadID: "conv"}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := e.Invoke(ctx, "chat", logField.Set([]string{"again"}), Config{ThreadID: "conv"})
	if err != nil {
		t.Fatalf("second Invoke: %v", err)
	}
	want := []string{"hi", "reply", "again", "reply"}
	if got := logField.Get(res.State); !reflect.DeepEqual(got, want) {
		t.Errorf("log = %v, want %v", got, want)
	}
}

func TestEngine_InvokeUnknownGraph(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.Invoke(context.Background(), "missing", nil, Config{})
	if !errors.Is(err, ErrUnknownGraph) || res != nil {
		t.Fatalf("got %v, %v; want ErrUnknownGraph and nil result", res, err)
	}
}

func TestEngine_InvalidInput(t *testing.T) {
	g := mustCompile(t, NewBuilder("in", testSchema()).
		AddNode("A", increment()).
		AddEdge(Start, "A"))
	e, st := newTestEngine(t)
	res, err := e.Run(context.Background(), g, Update{"unknown": 1}, Config{ThreadID: "bad"})
	if !errors.Is(err, ErrSchemaViolation) || res != nil {
		t.Fatalf("got %v, %v; want schema violation before start", res, err)
	}
	if _, err := st.Load(context.Background(), "bad"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no checkpoint, got %v", err)
	}
}

func TestEngine_Register(t *testing.T) {
	e, _ := newTestEngine(t)
	g1 := mustCompile(t, NewBuilder("same", testSchema()).AddNode("A", increment()).AddEdge(Start, "A"))
	g2 := mustCompile(t, NewBuilder("same", testSchema()).AddNode("B", increment()).AddEdge(Start, "B"))

	if err := e.Register(g1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := e.Register(g1); err != nil {
		t.Errorf("re-registering the same graph: %v", err)
	}
	if err := e.Register(g2); err == nil {
		t.Error("expected error registering a different graph under a taken name")
	}
	if got := e.Graphs(); !reflect.DeepEqual(got, []string{"same"}) {
		t.Errorf("Graphs = %v", got)
	}
}

func TestEngine_UIEvents(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	listener := func(threadID string, ev ui.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, threadID+":"+ev.Name)
	}
	pusher := func(name string) Node {
		return NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
			ui.Push(ctx, ui.Event{Name: name, Props: map[string]any{"n": name}})
			return Continue(nil)
		})
	}
	g := mustCompile(t, NewBuilder("ui", testSchema()).
		AddNode("a", pusher("card-a")).
		AddNode("b", pusher("card-b")).
		AddEdge(Start, "a").
		AddEdge(Start, "b"))

	e, _ := newTestEngine(t, WithUIListener(listener))
	res, err := e.Run(context.Background(), g, nil, Config{ThreadID: "u"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.UI) != 2 {
		t.Fatalf("ui events = %d, want 2", len(res.UI))
	}
	for _, ev := range res.UI {
		if ev.ID == "" || ev.Metadata == nil {
			t.Errorf("event not normalized: %+v", ev)
		}
	}
	if len(seen) != 2 {
		t.Errorf("listener saw %v", seen)
	}

	cp, _ := e.Checkpoint(context.Background(), "u")
	if len(cp.UI) == 0 {
		t.Error("checkpoint did not persist ui events")
	}
}

func TestEngine_CheckpointEachStep(t *testing.T) {
	g := mustCompile(t, NewBuilder("steps", testSchema()).
		AddNode("A", increment()).
		AddNode("B", increment()).
		AddNode("C", increment()).
		AddEdge(Start, "A").
		AddEdge("A", "B").
		AddEdge("B", "C"))

	buf := emit.NewBufferedEmitter()
	e, _ := newTestEngine(t, WithEmitter(buf))
	if _, err := e.Run(context.Background(), g, nil, Config{ThreadID: "s"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	saved := buf.GetHistoryWithFilter("s", emit.HistoryFilter{Msg: emit.MsgCheckpointSaved})
	// initial RUNNING record, one per step, and the terminal record
	if len(saved) != 5 {
		t.Errorf("checkpoint_saved events = %d, want 5", len(saved))
	}
	starts := buf.GetHistoryWithFilter("s", emit.HistoryFilter{Msg: emit.MsgNodeStart})
	if len(starts) != 3 {
		t.Errorf("node_start events = %d, want 3", len(starts))
	}
	if ends := buf.GetHistoryWithFilter("s", emit.HistoryFilter{Msg: emit.MsgRunComplete}); len(ends) != 1 {
		t.Errorf("run_complete events = %d, want 1", len(ends))
	}
}

func TestEngine_ThreadsAndDiscard(t *testing.T) {
	g := mustCompile(t, NewBuilder("list", testSchema()).
		AddNode("A", increment()).
		AddEdge(Start, "A"))
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.Run(ctx, g, nil, Config{ThreadID: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	cps, err := e.Threads(ctx, store.ListOptions{Graph: "list"})
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(cps) != 3 {
		t.Fatalf("threads = %d, want 3", len(cps))
	}

	if err := e.Discard(ctx, "t1"); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := e.Checkpoint(ctx, "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after discard, got %v", err)
	}

	st, cp, err := e.ThreadState(ctx, "t0")
	if err != nil {
		t.Fatalf("ThreadState: %v", err)
	}
	if counterField.Get(st) != 1 || cp.GraphName != "list" {
		t.Errorf("thread state = %v on %s", st.Map(), cp.GraphName)
	}
}

func TestEngine_MultipleInterrupts(t *testing.T) {
	pause := NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
		return Pause("?", nil)
	})
	g := mustCompile(t, NewBuilder("twice", testSchema()).
		AddNode("p1", pause).
		AddNode("p2", pause).
		AddEdge(Start, "p1").
		AddEdge(Start, "p2"))
	e, _ := newTestEngine(t)
	_, err := e.Run(context.Background(), g, nil, Config{})
	if !errors.Is(err, ErrMultipleInterrupts) {
		t.Fatalf("err = %v, want ErrMultipleInterrupts", err)
	}
}

func TestEngine_ConfigPassedToNodes(t *testing.T) {
	var got Config
	g := mustCompile(t, NewBuilder("cfg", testSchema()).
		AddNode("A", NodeFunc(func(ctx context.Context, s State, cfg Config) NodeResult {
			got = cfg
			return Continue(nil)
		})).
		AddEdge(Start, "A"))
	e, _ := newTestEngine(t)
	cfg := Config{ThreadID: "cfg", Permissions: Permissions{FullWriteAccess: true}, Values: map[string]any{"model": "x"}}
	if _, err := e.Run(context.Background(), g, nil, cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !got.Permissions.FullWriteAccess || got.ThreadID != "cfg" || got.Values["model"] != "x" {
		t.Errorf("node saw config %+v", got)
	}
}
