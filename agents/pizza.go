package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

const (
	shopFound   = "I've found a pizza shop at 1119 19th St, San Francisco, CA 94107. The phone number for the shop is 415-555-1234."
	orderPlaced = "Pizza order successfully placed."
)

var pizzaSchema = graph.MustSchema(PizzaOrderer, Messages)

var (
	findShopTool = model.ToolSpec{
		Name:        "find_shop",
		Description: "Find a pizza shop near the user.",
		Schema: objectSchema(map[string]any{
			"location":      stringProp("The location the user is in. E.g. 'San Francisco' or 'New York'"),
			"pizza_company": stringProp("The name of the pizza company. E.g. 'Dominos' or 'Papa John's'. Optional"),
		}, "location"),
	}
	placeOrderTool = model.ToolSpec{
		Name:        "place_order",
		Description: "Place a pizza order with a shop.",
		Schema: objectSchema(map[string]any{
			"address":      stringProp("The address of the store to order the pizza from"),
			"phone_number": stringProp("The phone number of the store to order the pizza from"),
			"order":        stringProp("The full pizza order for the user"),
		}, "address", "phone_number", "order"),
	}
)

// NewPizzaOrderer compiles the pizza ordering agent: find a shop, then
// place the order. Both steps answer their own tool call with a simulated
// result.
func NewPizzaOrderer(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(PizzaOrderer)

	step := func(prompt string, spec model.ToolSpec, wait time.Duration, result string) graph.Node {
		return graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
			_, out, err := model.Extract(ctx, m, withSystem(prompt, Messages.Get(s)), spec)
			if err != nil {
				return graph.Fail(fmt.Errorf("%s: %w", spec.Name, err))
			}
			if err := sleep(ctx, wait); err != nil {
				return graph.Fail(err)
			}
			call, _ := out.Call(spec.Name)
			return graph.Continue(Messages.Set(toList(
				model.Message{ID: deps.NewID(), Role: model.RoleAssistant, Content: out.Text, ToolCalls: []model.ToolCall{call}},
				model.ToolResult(call.ID, result),
			)))
		})
	}

	find := step(
		"You are a helpful AI assistant, tasked with extracting information from the conversation between you, and the user, in order to find a pizza shop for them.",
		findShopTool, deps.Latency, shopFound)
	order := step(
		"You are a helpful AI assistant, tasked with placing an order for a pizza for the user.",
		placeOrderTool, deps.Latency*3/10, orderPlaced)

	return graph.NewBuilder(PizzaOrderer, pizzaSchema).
		AddNode("findStore", find).
		AddNode("orderPizza", order).
		AddEdge(graph.Start, "findStore").
		AddEdge("findStore", "orderPizza").
		AddEdge("orderPizza", graph.End).
		Compile()
}
