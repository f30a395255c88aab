package model

import (
	"context"
	"sync"
)

// MockChatModel is a test implementation of ChatModel.
//
// It returns Responses in order and then repeats the last one. When Respond
// is set it is consulted instead, which lets a mock answer based on the
// conversation or on the offered tools.
//
//	mock := &MockChatModel{Responses: []ChatOut{{Text: "Hi"}}}
//	out, _ := mock.Chat(ctx, msgs, nil) // "Hi"
type MockChatModel struct {
	// Responses contains the sequence of responses to return.
	Responses []ChatOut

	// Respond, if set, computes the response for each call.
	Respond func(messages []Message, tools []ToolSpec) (ChatOut, error)

	// Err, if set, is returned by every call.
	Err error

	// Calls records every invocation, including failed ones.
	Calls []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records a single invocation of Chat.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{
		Messages: append([]Message(nil), messages...),
		Tools:    append([]ToolSpec(nil), tools...),
	})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if m.Respond != nil {
		return m.Respond(messages, tools)
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
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
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Chat has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

// LastCall returns the most recent invocation.
func (m *MockChatModel) LastCall() (MockChatCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Calls) == 0 {
		return MockChatCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
