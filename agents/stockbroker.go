package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/tool"
	"github.com/dshills/langgraph-agents/graph/ui"
)

const stockbrokerPrompt = "You are a helpful stockbroker assistant. Use the available tools to help users with stock prices, buying stocks, and viewing their portfolio."

var stockbrokerSchema = graph.MustSchema(Stockbroker, Messages, Timestamp)

// NewStockbroker compiles the stockbroker agent. Each tool result is also
// published as a "stockbroker" UI event attached to the model's message.
func NewStockbroker(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(Stockbroker)
	tools := stockTools(deps)

	agent := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		out, err := m.Chat(ctx, withSystem(stockbrokerPrompt, Messages.Get(s)), tools.Specs())
		if err != nil {
			return graph.Fail(err)
		}
		response := deps.reply(out)
		if len(out.ToolCalls) == 0 {
			return graph.Continue(Messages.Set(toList(response)))
		}

		msgs := toList(response)
		for _, tc := range out.ToolCalls {
			result, msg, err := tools.Execute(ctx, tc)
			switch {
			case errors.Is(err, tool.ErrUnknownTool):
				result = map[string]any{"error": "Unknown tool: " + tc.Name}
				msg = toolMessage(tc.ID, result)
			case err != nil:
				if ctx.Err() != nil {
					return graph.Fail(err)
				}
				result = map[string]any{"error": err.Error()}
				msg = toolMessage(tc.ID, result)
			}
			ui.Push(ctx, ui.Event{
				Name: "stockbroker",
				Props: map[string]any{
					"toolName":  tc.Name,
					"result":    result,
					"timestamp": deps.Now().Unix(),
				},
			}.ForMessage(response.ID))
			msgs = append(msgs, msg)
		}
		return graph.Continue(graph.Updates(
			Messages.Set(msgs),
			Timestamp.Set(deps.Now()),
		))
	})

	// agent has no outgoing edge and ends the run.
	return graph.NewBuilder(Stockbroker, stockbrokerSchema).
		AddNode("agent", agent).
		AddEdge(graph.Start, "agent").
		Compile()
}

func toolMessage(callID string, result map[string]any) model.Message {
	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(fmt.Sprintf("%v", result))
	}
	return model.ToolResult(callID, string(content))
}
