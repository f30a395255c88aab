// Package model defines the chat model boundary used by node bodies.
//
// Providers live in sub-packages (openai, anthropic, google) and all satisfy
// ChatModel, so an agent graph can be wired to any of them, or to
// MockChatModel in tests, without changing node code.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoToolCall is returned by Extract when the model answered in prose
// instead of calling the requested tool.
var ErrNoToolCall = errors.New("model did not call the requested tool")

// ChatModel is the interface every provider adapter implements.
//
// Chat sends the conversation and the tools the model may call, and returns
// the model's reply. Implementations must honor ctx cancellation and must be
// safe for concurrent use, since parallel nodes may share one model.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single conversation turn.
//
// Messages are stored in graph state and checkpoints, so every field has a
// stable JSON name.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Standard message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolSpec describes a tool the model may call. Schema is a JSON Schema
// object describing the tool's input.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// ChatOut is a model reply: text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a request from the model to invoke a tool.
type ToolCall struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// Message converts the reply to an assistant message carrying id.
func (o ChatOut) Message(id string) Message {
	return Message{ID: id, Role: RoleAssistant, Content: o.Text, ToolCalls: o.ToolCalls}
}

// Call returns the first tool call named name.
func (o ChatOut) Call(name string) (ToolCall, bool) {
	for _, tc := range o.ToolCalls {
		if tc.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ToolResult returns a tool message answering the call with id callID.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Extract asks m to call spec and returns the call's input. It is the
// structured-output pattern: the tool is never executed, its arguments are
// the answer.
func Extract(ctx context.Context, m ChatModel, messages []Message, spec ToolSpec) (map[string]any, ChatOut, error) {
	out, err := m.Chat(ctx, messages, []ToolSpec{spec})
	if err != nil {
		return nil, out, err
	}
	tc, ok := out.Call(spec.Name)
	if !ok {
		return nil, out, fmt.Errorf("%s: %w", spec.Name, ErrNoToolCall)
	}
	if tc.Input == nil {
		tc.Input = map[string]any{}
	}
	return tc.Input, out, nil
}

// Transcript renders messages as "role: content" lines.
func Transcript(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// LastOfRole returns the last message with the given role.
func LastOfRole(messages []Message, role string) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return messages[i], true
		}
	}
	return Message{}, false
}
