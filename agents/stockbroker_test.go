package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

func TestStockbroker(t *testing.T) {
	e := newEngine(t, byTool(map[string]model.ChatOut{
		"get_stock_price": {Text: "Checking.", ToolCalls: []model.ToolCall{
			{ID: "p1", Name: "get_portfolio"},
			{ID: "x1", Name: "sell_stock", Input: map[string]any{"ticker": "AAPL"}},
		}},
	}))

	res, err := e.Invoke(context.Background(), Stockbroker, Input("How is my portfolio doing?"), graph.Config{})
	require.NoError(t, err)
	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Equal(t, testNow, Timestamp.Get(res.State))

	msgs := Messages.Get(res.State)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Checking.", msgs[1].Content)
	assert.Contains(t, msgs[2].Content, `"total_value":53107.5`)
	assert.Equal(t, `{"error":"Unknown tool: sell_stock"}`, msgs[3].Content)

	require.Len(t, res.UI, 2)
	for i, name := range []string{"get_portfolio", "sell_stock"} {
		assert.Equal(t, "stockbroker", res.UI[i].Name)
		assert.Equal(t, name, res.UI[i].Props["toolName"])
		assert.Equal(t, msgs[1].ID, res.UI[i].MessageID())
	}
}

func TestStockbroker_PlainAnswer(t *testing.T) {
	e := newEngine(t, byTool(map[string]model.ChatOut{"get_stock_price": {Text: "Markets are closed."}}))

	res, err := e.Invoke(context.Background(), Stockbroker, Input("hello"), graph.Config{})
	require.NoError(t, err)
	assert.Empty(t, res.UI)
	assert.Equal(t, "Markets are closed.", last(t, res.State).Content)
}

func TestStockTools(t *testing.T) {
	ctx := context.Background()
	tools := stockTools(testDeps(nil).withDefaults())

	first, _, err := tools.Execute(ctx, model.ToolCall{ID: "1", Name: "get_stock_price", Input: map[string]any{"ticker": "nvda"}})
	require.NoError(t, err)
	again, _, err := tools.Execute(ctx, model.ToolCall{ID: "2", Name: "get_stock_price", Input: map[string]any{"ticker": "NVDA"}})
	require.NoError(t, err)
	assert.Equal(t, first, again, "quotes are stable per ticker")
	assert.Equal(t, "NVDA", first["ticker"])

	price := first["price"].(float64)
	assert.GreaterOrEqual(t, price, 47.5)
	assert.LessOrEqual(t, price, 525.0)

	order, _, err := tools.Execute(ctx, model.ToolCall{ID: "3", Name: "buy_stock", Input: map[string]any{"ticker": "NVDA", "quantity": float64(4)}})
	require.NoError(t, err)
	assert.Equal(t, 4, order["quantity"])
	assert.Equal(t, round(price*4, 2), order["total_cost"])

	_, _, err = tools.Execute(ctx, model.ToolCall{ID: "4", Name: "buy_stock", Input: map[string]any{"ticker": "NVDA"}})
	assert.Error(t, err)

	portfolio, _, err := tools.Execute(ctx, model.ToolCall{ID: "5", Name: "get_portfolio"})
	require.NoError(t, err)
	assert.Equal(t, 53107.5, portfolio["total_value"])
	assert.Equal(t, 590.0, portfolio["total_day_change"])
}
