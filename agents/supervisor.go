package agents

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

// Supervisor routes. Next holds one of these after the router runs.
const (
	RouteStockbroker  = "stockbroker"
	RouteTripPlanner  = "tripPlanner"
	RouteOpenCode     = "openCode"
	RouteOrderPizza   = "orderPizza"
	RouteWriterAgent  = "writerAgent"
	RouteGeneralInput = "generalInput"
)

var routes = []string{RouteStockbroker, RouteTripPlanner, RouteOpenCode, RouteOrderPizza, RouteGeneralInput, RouteWriterAgent}

// supervisorSchema carries the sub-agents' long-lived fields so trip details
// and plan progress survive from one turn to the next.
var supervisorSchema = graph.MustSchema(Supervisor,
	Messages, Next, Timestamp, Context, TripDetailsKey, Plan, CompletedSteps)

const agentDescriptions = `- stockbroker: can fetch the price of a ticker, purchase/sell a ticker, or get the user's portfolio
- tripPlanner: helps the user plan their trip. it can suggest restaurants, and places to stay in any given location.
- openCode: can write a React TODO app for the user. Only call this tool if they request a TODO app.
- orderPizza: can order a pizza for the user
- writerAgent: can write a text document for the user. Only call this tool if they request a text document.`

var routerPrompt = fmt.Sprintf(`You are a supervisor agent that routes conversations to specialized agents.

Available agents:
%s

Based on the conversation, determine which agent should handle the user's request.
If no specific agent is needed, route to 'generalInput' for general conversation.`, agentDescriptions)

var routeTool = model.ToolSpec{
	Name:        "route_to_agent",
	Description: "Route to a specific agent based on the conversation context.",
	Schema: objectSchema(map[string]any{
		"agent": map[string]any{"type": "string", "enum": routes, "description": "The agent to hand the conversation to"},
	}, "agent"),
}

const generalPrompt = "You are a helpful AI assistant. Provide a helpful response to the user's query."

// newSupervisor compiles the routing graph around already compiled
// sub-agents.
func newSupervisor(deps Deps, subs map[string]*graph.CompiledGraph) (*graph.CompiledGraph, error) {
	m := deps.modelFor(Supervisor)

	router := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		args, _, err := model.Extract(ctx, m, withSystem(routerPrompt, Messages.Get(s)), routeTool)
		if err != nil && !errors.Is(err, model.ErrNoToolCall) {
			return graph.Fail(err)
		}
		next, _ := args["agent"].(string)
		if !slices.Contains(routes, next) {
			if next != "" {
				deps.Logger.Warn("router chose an unknown agent", "agent", next)
			}
			next = RouteGeneralInput
		}
		return graph.Continue(Next.Set(next))
	})

	general := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		out, err := m.Chat(ctx, withSystem(generalPrompt, Messages.Get(s)), nil)
		if err != nil {
			return graph.Fail(err)
		}
		return graph.Continue(Messages.Set(toList(deps.reply(out))))
	})

	b := graph.NewBuilder(Supervisor, supervisorSchema).
		AddNode("router", deps.retrying(router)).
		AddNode(RouteGeneralInput, deps.retrying(general)).
		AddEdge(graph.Start, "router").
		AddConditionalEdges("router", handleRoute, routes...).
		AddEdge(RouteGeneralInput, graph.End)

	for _, sub := range []struct{ route, graph string }{
		{RouteStockbroker, Stockbroker},
		{RouteTripPlanner, TripPlanner},
		{RouteOpenCode, OpenCode},
		{RouteOrderPizza, PizzaOrderer},
		{RouteWriterAgent, WriterAgent},
	} {
		child, ok := subs[sub.graph]
		if !ok {
			return nil, fmt.Errorf("agents: supervisor needs the %s graph", sub.graph)
		}
		b.AddNode(sub.route, graph.Embed(child)).AddEdge(sub.route, graph.End)
	}
	return b.Compile()
}

func handleRoute(s graph.State, _ graph.Config) string {
	if next := Next.Get(s); next != "" {
		return next
	}
	return RouteGeneralInput
}
