package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dshills/langgraph-agents/graph/model"
)

func echoTool(name string) *Func {
	return NewFunc(model.ToolSpec{Name: name, Description: "echo"}, func(_ context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"echo": input["value"]}, nil
	})
}

func TestFunc(t *testing.T) {
	f := echoTool("echo")
	if f.Name() != "echo" || f.Spec().Description != "echo" {
		t.Errorf("spec = %+v", f.Spec())
	}
	out, err := f.Call(context.Background(), map[string]any{"value": 1})
	if err != nil || out["echo"] != 1 {
		t.Errorf("Call = %v, %v", out, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Call(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Call err = %v", err)
	}
}

func TestSet(t *testing.T) {
	s := NewSet(echoTool("b"), echoTool("a"), &MockTool{ToolName: "b", Description: "replacement"})

	if got := s.Names(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Names = %v", got)
	}
	specs := s.Specs()
	if len(specs) != 2 || specs[0].Description != "replacement" {
		t.Errorf("Specs = %+v", specs)
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("Get(a) missing")
	}
}

func TestSet_Execute(t *testing.T) {
	ctx := context.Background()
	s := NewSet(echoTool("echo"), &MockTool{ToolName: "broken", Err: errors.New("down")})

	result, msg, err := s.Execute(ctx, model.ToolCall{ID: "c1", Name: "echo", Input: map[string]any{"value": "hi"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["echo"] != "hi" {
		t.Errorf("result = %v", result)
	}
	if msg.Role != model.RoleTool || msg.ToolCallID != "c1" || msg.Content != `{"echo":"hi"}` {
		t.Errorf("message = %+v", msg)
	}

	if _, _, err := s.Execute(ctx, model.ToolCall{Name: "missing"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("unknown tool err = %v", err)
	}
	if _, _, err := s.Execute(ctx, model.ToolCall{Name: "broken"}); err == nil {
		t.Error("tool failure not reported")
	}
}

func TestMockTool(t *testing.T) {
	ctx := context.Background()
	m := &MockTool{ToolName: "get_portfolio", Responses: []map[string]any{{"n": 1}, {"n": 2}}}

	for i, want := range []int{1, 2, 2} {
		out, err := m.Call(ctx, nil)
		if err != nil || out["n"] != want {
			t.Errorf("call %d = %v, %v", i, out, err)
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d", m.CallCount())
	}
	m.Reset()
	if m.CallCount() != 0 {
		t.Error("Reset kept calls")
	}

	empty := &MockTool{ToolName: "noop"}
	if out, err := empty.Call(ctx, nil); err != nil || out == nil {
		t.Errorf("empty mock = %v, %v", out, err)
	}
	if empty.Spec().Name != "noop" {
		t.Errorf("Spec = %+v", empty.Spec())
	}
}

func TestMockTool_Concurrent(t *testing.T) {
	m := &MockTool{ToolName: "t"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Call(context.Background(), nil)
		}()
	}
	wg.Wait()
	if m.CallCount() != 20 {
		t.Errorf("CallCount = %d", m.CallCount())
	}
}
