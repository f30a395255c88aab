package agents

import (
	"context"

	"github.com/dshills/langgraph-agents/graph"
)

const chatPrompt = "You are a helpful assistant."

var chatSchema = graph.MustSchema(Chat, Messages)

// NewChat compiles the plain chat agent: one model turn per user message.
func NewChat(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(Chat)

	chat := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		out, err := m.Chat(ctx, withSystem(chatPrompt, Messages.Get(s)), nil)
		if err != nil {
			return graph.Fail(err)
		}
		return graph.Continue(Messages.Set(toList(deps.reply(out))))
	})

	return graph.NewBuilder(Chat, chatSchema).
		AddNode("chat", deps.retrying(chat)).
		AddEdge(graph.Start, "chat").
		AddEdge("chat", graph.End).
		Compile()
}
