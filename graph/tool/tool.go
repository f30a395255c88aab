// Package tool defines executable tools that a model may call from inside a
// node body, and a Set that dispatches a model's tool calls to them.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dshills/langgraph-agents/graph/model"
)

// ErrUnknownTool is returned when a model calls a tool the Set does not hold.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is an executable capability offered to a model.
//
// Spec describes the tool to the model; its Name must equal Name(). Call
// receives the model's arguments, which may be nil for parameterless tools.
// Implementations should honor ctx cancellation.
type Tool interface {
	Name() string
	Spec() model.ToolSpec
	Call(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Func adapts a function to Tool.
type Func struct {
	spec model.ToolSpec
	fn   func(ctx context.Context, input map[string]any) (map[string]any, error)
}

// NewFunc returns a tool described by spec that runs fn.
func NewFunc(spec model.ToolSpec, fn func(ctx context.Context, input map[string]any) (map[string]any, error)) *Func {
	return &Func{spec: spec, fn: fn}
}

func (f *Func) Name() string { return f.spec.Name }

func (f *Func) Spec() model.ToolSpec { return f.spec }

func (f *Func) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(ctx, input)
}

// Set is an ordered collection of tools keyed by name.
type Set struct {
	order []string
	tools map[string]Tool
}

// NewSet builds a Set. Later tools replace earlier ones with the same name.
func NewSet(tools ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := s.tools[t.Name()]; !dup {
			s.order = append(s.order, t.Name())
		}
		s.tools[t.Name()] = t
	}
	return s
}

// Get returns the tool named name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (s *Set) Names() []string {
	return slices.Clone(s.order)
}

// Specs returns the descriptions to offer a model, in registration order.
func (s *Set) Specs() []model.ToolSpec {
	specs := make([]model.ToolSpec, len(s.order))
	for i, name := range s.order {
		specs[i] = s.tools[name].Spec()
	}
	return specs
}

// Execute runs one tool call and returns its result together with the tool
// message that answers the call.
func (s *Set) Execute(ctx context.Context, tc model.ToolCall) (map[string]any, model.Message, error) {
	t, ok := s.tools[tc.Name]
	if !ok {
		return nil, model.Message{}, fmt.Errorf("%w: %s", ErrUnknownTool, tc.Name)
	}
	result, err := t.Call(ctx, tc.Input)
	if err != nil {
		return nil, model.Message{}, fmt.Errorf("tool %s: %w", tc.Name, err)
	}
	content, err := json.Marshal(result)
	if err != nil {
		return nil, model.Message{}, fmt.Errorf("tool %s: encode result: %w", tc.Name, err)
	}
	return result, model.ToolResult(tc.ID, string(content)), nil
}
