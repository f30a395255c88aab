package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/dshills/langgraph-agents/graph/model"
)

type mockOpenAIClient struct {
	responses []*openai.ChatCompletion
	errs      []error
	calls     []openai.ChatCompletionNewParams
}

func (m *mockOpenAIClient) createChatCompletion(_ context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	i := len(m.calls)
	m.calls = append(m.calls, params)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return m.responses[len(m.responses)-1], nil
}

func textCompletion(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Content: text},
	}}}
}

func testModel(client openaiClient) *ChatModel {
	return &ChatModel{modelName: "gpt-4o", client: client, maxRetries: 3, retryDelay: time.Millisecond}
}

func TestNewChatModel(t *testing.T) {
	if m := NewChatModel("test-key", ""); m.modelName != DefaultModel {
		t.Errorf("modelName = %q, want %q", m.modelName, DefaultModel)
	}
	if m := NewChatModel("test-key", "gpt-4o"); m.modelName != "gpt-4o" {
		t.Errorf("modelName = %q", m.modelName)
	}
}

func TestChatModel_Chat(t *testing.T) {
	client := &mockOpenAIClient{responses: []*openai.ChatCompletion{textCompletion("Hello!")}}
	m := testModel(client)

	out, err := m.Chat(context.Background(), []model.Message{model.System("Be brief."), model.User("Hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "Hello!" {
		t.Errorf("Text = %q", out.Text)
	}
	if len(client.calls) != 1 {
		t.Fatalf("calls = %d", len(client.calls))
	}
	params := client.calls[0]
	if string(params.Model) != "gpt-4o" || len(params.Messages) != 2 || len(params.Tools) != 0 {
		t.Errorf("params = %+v", params)
	}
}

func TestChatModel_ToolCalls(t *testing.T) {
	resp := &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{ToolCalls: []openai.ChatCompletionMessageToolCall{{
			ID: "call_1",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      "get_stock_price",
				Arguments: `{"ticker":"AAPL"}`,
			},
		}}},
	}}}
	client := &mockOpenAIClient{responses: []*openai.ChatCompletion{resp}}
	tools := []model.ToolSpec{{Name: "get_stock_price", Description: "Price lookup", Schema: map[string]any{"type": "object"}}}

	out, err := testModel(client).Chat(context.Background(), []model.Message{model.User("AAPL?")}, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	tc, ok := out.Call("get_stock_price")
	if !ok || tc.ID != "call_1" || tc.Input["ticker"] != "AAPL" {
		t.Errorf("tool call = %+v", out.ToolCalls)
	}
	if got := client.calls[0].Tools; len(got) != 1 || got[0].Function.Name != "get_stock_price" {
		t.Errorf("tools = %+v", got)
	}
}

func TestChatModel_BadArguments(t *testing.T) {
	resp := &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{ToolCalls: []openai.ChatCompletionMessageToolCall{{
			Function: openai.ChatCompletionMessageToolCallFunction{Name: "plan", Arguments: `{not json`},
		}}},
	}}}
	_, err := testModel(&mockOpenAIClient{responses: []*openai.ChatCompletion{resp}}).Chat(context.Background(), nil, nil)
	if err == nil {
		t.Error("expected error for malformed arguments")
	}
}

func TestChatModel_NoChoices(t *testing.T) {
	_, err := testModel(&mockOpenAIClient{responses: []*openai.ChatCompletion{{}}}).Chat(context.Background(), nil, nil)
	if err == nil {
		t.Error("expected error for empty response")
	}
}

func TestChatModel_Retry(t *testing.T) {
	t.Run("transient then success", func(t *testing.T) {
		client := &mockOpenAIClient{
			errs:      []error{errors.New("connection reset"), &rateLimitError{err: errors.New("429")}},
			responses: []*openai.ChatCompletion{nil, nil, textCompletion("ok")},
		}
		out, err := testModel(client).Chat(context.Background(), nil, nil)
		if err != nil || out.Text != "ok" {
			t.Fatalf("got %+v, %v", out, err)
		}
		if len(client.calls) != 3 {
			t.Errorf("calls = %d, want 3", len(client.calls))
		}
	})

	t.Run("permanent error not retried", func(t *testing.T) {
		client := &mockOpenAIClient{errs: []error{errors.New("invalid api key")}, responses: []*openai.ChatCompletion{nil}}
		if _, err := testModel(client).Chat(context.Background(), nil, nil); err == nil {
			t.Fatal("expected error")
		}
		if len(client.calls) != 1 {
			t.Errorf("calls = %d, want 1", len(client.calls))
		}
	})

	t.Run("gives up", func(t *testing.T) {
		timeout := errors.New("request timeout")
		client := &mockOpenAIClient{errs: []error{timeout, timeout, timeout, timeout}, responses: []*openai.ChatCompletion{nil}}
		_, err := testModel(client).Chat(context.Background(), nil, nil)
		if !errors.Is(err, timeout) {
			t.Fatalf("err = %v", err)
		}
		if len(client.calls) != 4 {
			t.Errorf("calls = %d, want 4", len(client.calls))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &mockOpenAIClient{responses: []*openai.ChatCompletion{textCompletion("unused")}}
		if _, err := testModel(client).Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
		if len(client.calls) != 0 {
			t.Error("cancelled request reached the client")
		}
	})
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		model.System("sys"),
		model.User("buy 2 AAPL"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "c1", Name: "buy_stock", Input: map[string]any{"ticker": "AAPL", "quantity": 2}}}},
		model.ToolResult("c1", `{"status":"success"}`),
		model.Assistant("Done."),
	})
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	if msgs[0].OfSystem == nil || msgs[1].OfUser == nil || msgs[4].OfAssistant == nil {
		t.Errorf("roles not mapped: %+v", msgs)
	}
	asst := msgs[2].OfAssistant
	if asst == nil || len(asst.ToolCalls) != 1 {
		t.Fatalf("assistant tool call missing: %+v", msgs[2])
	}
	if fn := asst.ToolCalls[0].Function; fn.Name != "buy_stock" || fn.Arguments != `{"quantity":2,"ticker":"AAPL"}` {
		t.Errorf("function = %+v", fn)
	}
	if msgs[3].OfTool == nil || msgs[3].OfTool.ToolCallID != "c1" {
		t.Errorf("tool message = %+v", msgs[3])
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&rateLimitError{err: errors.New("slow down")}, true},
		{&openai.Error{StatusCode: 503}, true},
		{&openai.Error{StatusCode: 400}, false},
		{errors.New("network unreachable"), true},
		{errors.New("invalid request"), false},
	}
	for _, tt := range tests {
		if got := isTransientError(tt.err); got != tt.want {
			t.Errorf("isTransientError(%#v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if !isRateLimitError(classify(&openai.Error{StatusCode: 429})) {
		t.Error("429 not classified as rate limit")
	}
	if isRateLimitError(classify(&openai.Error{StatusCode: 500})) {
		t.Error("500 classified as rate limit")
	}
}
