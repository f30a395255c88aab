// Package openai adapts the OpenAI chat completions API to model.ChatModel.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/langgraph-agents/graph/model"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "gpt-4o-mini"

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Transient failures (rate limits, 5xx, network errors) are retried up to
// three times; rate limits back off linearly with the attempt number.
//
//	m := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o")
//	out, err := m.Chat(ctx, []model.Message{model.User("Hi")}, nil)
type ChatModel struct {
	modelName  string
	client     openaiClient
	maxRetries int
	retryDelay time.Duration
}

// openaiClient is the single API call the adapter needs. Tests replace it.
type openaiClient interface {
	createChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// NewChatModel creates an OpenAI ChatModel. An empty apiKey falls back to the
// SDK's OPENAI_API_KEY lookup.
func NewChatModel(apiKey, modelName string, opts ...option.RequestOption) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)

	return &ChatModel{
		modelName:  modelName,
		client:     &sdkClient{client: &client},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: buildMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		resp, err := m.client.createChatCompletion(ctx, params)
		if err == nil {
			return convertResponse(resp)
		}
		lastErr = err

		if !isTransientError(err) || attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	if !isTransientError(lastErr) {
		return model.ChatOut{}, lastErr
	}
	return model.ChatOut{}, fmt.Errorf("openai: failed after %d retries: %w", m.maxRetries, lastErr)
}

// buildMessages converts conversation turns to OpenAI message params.
// Assistant turns keep their tool calls so that the following tool
// messages have something to answer.
func buildMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			asst := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls)),
			}
			if msg.Content != "" {
				asst.Content.OfString = openai.String(msg.Content)
			}
			for i, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: asst})
		case model.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func buildTools(tools []model.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, spec := range tools {
		schema := spec.Schema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  schema,
			},
		}
	}
	return out
}

func convertResponse(resp *openai.ChatCompletion) (model.ChatOut, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai: response has no choices")
	}
	msg := resp.Choices[0].Message
	out := model.ChatOut{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return model.ChatOut{}, fmt.Errorf("openai: tool %s arguments: %w", tc.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	return out, nil
}

// rateLimitError marks an HTTP 429 from the API.
type rateLimitError struct {
	err error
}

func (e *rateLimitError) Error() string { return "rate limited: " + e.err.Error() }

func (e *rateLimitError) Unwrap() error { return e.err }

// classify wraps SDK errors so the retry loop can recognize rate limits.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{err: err}
	}
	return err
}

// isTransientError determines if an error should trigger a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if isRateLimitError(err) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

// sdkClient calls the official openai-go client.
type sdkClient struct {
	client *openai.Client
}

func (c *sdkClient) createChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}
