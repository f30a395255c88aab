package tool

import (
	"context"
	"sync"

	"github.com/dshills/langgraph-agents/graph/model"
)

// MockTool is a test implementation of Tool.
//
// It returns Responses in order and then repeats the last one. Every call is
// recorded in Calls.
type MockTool struct {
	ToolName    string
	Description string

	Responses []map[string]any
	Err       error

	Calls []MockToolCall

	mu        sync.Mutex
	callIndex int
}

// MockToolCall records a single invocation of Call.
type MockToolCall struct {
	Input map[string]any
}

func (m *MockTool) Name() string {
	return m.ToolName
}

func (m *MockTool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        m.ToolName,
		Description: m.Description,
		Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (m *MockTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Input: input})

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return map[string]any{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and rewinds Responses.
func (m *MockTool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Call has been invoked.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
