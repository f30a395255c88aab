// Package anthropic adapts the Anthropic Messages API to model.ChatModel.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/langgraph-agents/graph/model"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// ChatModel implements model.ChatModel for Anthropic's Claude models.
//
// System messages are lifted into the request's system parameter, and tool
// results are sent back as tool_result blocks in a user turn, since the
// Messages API has no system or tool roles.
type ChatModel struct {
	modelName string
	maxTokens int64
	client    anthropicClient
}

type anthropicClient interface {
	createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// NewChatModel creates an Anthropic ChatModel. An empty apiKey falls back to
// the SDK's ANTHROPIC_API_KEY lookup.
func NewChatModel(apiKey, modelName string, opts ...option.RequestOption) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)

	return &ChatModel{
		modelName: modelName,
		maxTokens: defaultMaxTokens,
		client:    &sdkClient{client: &client},
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	systemPrompt, conversationMessages := extractSystemPrompt(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  buildMessages(conversationMessages),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := m.client.createMessage(ctx, params)
	if err != nil {
		var anthropicErr *anthropicError
		if errors.As(err, &anthropicErr) {
			return model.ChatOut{}, anthropicErr
		}
		return model.ChatOut{}, err
	}
	return convertResponse(resp)
}

// extractSystemPrompt separates system messages from the conversation.
// Multiple system messages are joined with a blank line.
func extractSystemPrompt(messages []model.Message) (string, []model.Message) {
	var systemPrompt string
	var conversationMessages []model.Message

	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		} else {
			conversationMessages = append(conversationMessages, msg)
		}
	}

	return systemPrompt, conversationMessages
}

// buildMessages converts turns to Anthropic message params. Consecutive tool
// results are grouped into one user turn.
func buildMessages(messages []model.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == model.RoleTool {
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			continue
		}
		flush()

		switch msg.Role {
		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Input
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return out
}

func buildTools(tools []model.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, spec := range tools {
		var schema anthropic.ToolInputSchemaParam
		if props, ok := spec.Schema["properties"]; ok {
			schema.Properties = props
		}
		switch req := spec.Schema["required"].(type) {
		case []string:
			schema.Required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if spec.Description != "" {
			out[i].OfTool.Description = anthropic.String(spec.Description)
		}
	}
	return out
}

func convertResponse(resp *anthropic.Message) (model.ChatOut, error) {
	if resp == nil {
		return model.ChatOut{}, errors.New("anthropic: empty response")
	}
	var out model.ChatOut
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			input := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return model.ChatOut{}, fmt.Errorf("anthropic: tool %s input: %w", block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{ID: block.ID, Name: block.Name, Input: input})
		}
	}
	return out, nil
}

// anthropicError represents an Anthropic API error.
//
// Type follows the API's error types: authentication_error,
// permission_error, not_found_error, rate_limit_error, overloaded_error,
// invalid_request_error, api_error.
type anthropicError struct {
	Type    string
	Message string
	Status  int
}

func (e *anthropicError) Error() string {
	return e.Type + ": " + e.Message
}

// Temporary reports whether retrying the request may succeed.
func (e *anthropicError) Temporary() bool {
	return e.Type == "rate_limit_error" || e.Type == "overloaded_error" || e.Status >= 500
}

// translateError maps an SDK error to an anthropicError by HTTP status.
func translateError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	typ := "api_error"
	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		typ = "invalid_request_error"
	case http.StatusUnauthorized:
		typ = "authentication_error"
	case http.StatusForbidden:
		typ = "permission_error"
	case http.StatusNotFound:
		typ = "not_found_error"
	case http.StatusTooManyRequests:
		typ = "rate_limit_error"
	case 529:
		typ = "overloaded_error"
	}
	return &anthropicError{Type: typ, Message: http.StatusText(apiErr.StatusCode), Status: apiErr.StatusCode}
}

// sdkClient calls the official anthropic-sdk-go client.
type sdkClient struct {
	client *anthropic.Client
}

func (c *sdkClient) createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, translateError(err)
	}
	return resp, nil
}
