// Package google adapts the Gemini API to model.ChatModel.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/langgraph-agents/graph/model"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "gemini-2.5-flash"

// ChatModel implements model.ChatModel for Google's Gemini models.
//
// Responses blocked by Gemini's safety filters are reported as
// *SafetyFilterError:
//
//	var safetyErr *google.SafetyFilterError
//	if errors.As(err, &safetyErr) {
//	    log.Printf("blocked: %s", safetyErr.Category())
//	}
type ChatModel struct {
	modelName string
	client    googleClient
}

// request is one Gemini call: the conversation up to the final user turn,
// which is sent as the new message.
type request struct {
	system  *genai.Content
	history []*genai.Content
	last    []genai.Part
	tools   []*genai.Tool
}

type googleClient interface {
	generateContent(ctx context.Context, req request) (*genai.GenerateContentResponse, error)
}

// NewChatModel creates a Gemini ChatModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	req, err := buildRequest(messages, tools)
	if err != nil {
		return model.ChatOut{}, err
	}

	resp, err := m.client.generateContent(ctx, req)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return model.ChatOut{}, safetyError(blocked)
		}
		return model.ChatOut{}, err
	}
	return convertResponse(resp), nil
}

// buildRequest converts the conversation to Gemini contents. System
// messages become the system instruction, assistant turns use the "model"
// role, and tool results become function responses named after the call
// they answer.
func buildRequest(messages []model.Message, tools []model.ToolSpec) (request, error) {
	var req request
	var system []genai.Part
	callNames := map[string]string{}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, genai.Text(msg.Content))
		case model.RoleAssistant:
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Name
				content.Parts = append(content.Parts, genai.FunctionCall{Name: tc.Name, Args: tc.Input})
			}
			if len(content.Parts) > 0 {
				req.history = append(req.history, content)
			}
		case model.RoleTool:
			req.history = append(req.history, &genai.Content{Role: "user", Parts: []genai.Part{
				genai.FunctionResponse{Name: callNames[msg.ToolCallID], Response: toolResponse(msg.Content)},
			}})
		default:
			req.history = append(req.history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}

	if len(req.history) == 0 {
		return request{}, errors.New("google: no conversation messages")
	}
	last := req.history[len(req.history)-1]
	if last.Role != "user" {
		return request{}, errors.New("google: conversation must end with a user or tool message")
	}
	req.last = last.Parts
	req.history = req.history[:len(req.history)-1]

	if len(system) > 0 {
		req.system = &genai.Content{Parts: system}
	}
	if len(tools) > 0 {
		req.tools = convertTools(tools)
	}
	return req, nil
}

// toolResponse decodes a JSON object result, or wraps plain text.
func toolResponse(content string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err == nil && out != nil {
		return out
	}
	return map[string]any{"content": content}
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema converts a JSON Schema map to genai.Schema, recursing into
// properties and array items.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{Type: genai.TypeObject}
	if typeStr, ok := schema["type"].(string); ok {
		result.Type = convertTypeString(typeStr)
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}
	if format, ok := schema["format"].(string); ok {
		result.Format = format
	}
	result.Enum = stringList(schema["enum"])
	result.Required = stringList(schema["required"])

	if items, ok := schema["items"].(map[string]any); ok {
		result.Items = convertSchema(items)
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			if propMap, ok := val.(map[string]any); ok {
				result.Properties[key] = convertSchema(propMap)
			}
		}
	}
	return result
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}
	if resp == nil || len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return out
	}

	for i, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			// Gemini does not assign call ids; derive a stable one.
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    fmt.Sprintf("%s-%d", p.Name, i),
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out
}

func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// SafetyFilterError reports a prompt or response blocked by Gemini.
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the harm category that triggered the block.
func (e *SafetyFilterError) Category() string {
	return e.category
}

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string {
	return e.reason
}

func safetyError(blocked *genai.BlockedError) *SafetyFilterError {
	var ratings []*genai.SafetyRating
	se := &SafetyFilterError{category: "unspecified"}
	switch {
	case blocked.PromptFeedback != nil:
		se.reason = blocked.PromptFeedback.BlockReason.String()
		ratings = blocked.PromptFeedback.SafetyRatings
	case blocked.Candidate != nil:
		se.reason = blocked.Candidate.FinishReason.String()
		ratings = blocked.Candidate.SafetyRatings
	}
	for _, r := range ratings {
		if r != nil && r.Blocked {
			se.category = r.Category.String()
			break
		}
	}
	return se
}

// defaultClient opens a Gemini client per call.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, req request) (*genai.GenerateContentResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	genModel := client.GenerativeModel(c.modelName)
	genModel.SystemInstruction = req.system
	genModel.Tools = req.tools

	session := genModel.StartChat()
	session.History = req.history
	resp, err := session.SendMessage(ctx, req.last...)
	if err != nil {
		return nil, fmt.Errorf("google API error: %w", err)
	}
	return resp, nil
}
