package agents

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/tool"
)

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// seeded returns a generator that yields the same sequence for the same key,
// so simulated market and travel data is stable across calls.
func seeded(key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(key)))
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum>>1))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func between(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

type holding struct {
	ticker string
	shares int
	price  float64
	change float64
}

var portfolio = []holding{
	{"AAPL", 100, 175.50, 2.30},
	{"GOOGL", 50, 142.80, -1.20},
	{"MSFT", 75, 378.90, 5.60},
}

// stockTools are the simulated brokerage tools.
func stockTools(deps Deps) *tool.Set {
	quote := func(ticker string) map[string]any {
		ticker = strings.ToUpper(ticker)
		r := seeded(ticker)
		base := between(r, 50, 500)
		change := between(r, -0.05, 0.05)
		return map[string]any{
			"ticker":         ticker,
			"price":          round(base*(1+change), 2),
			"change":         round(base*change, 2),
			"change_percent": round(change*100, 2),
			"volume":         1_000_000 + r.IntN(9_000_000),
			"market_cap":     1_000_000_000 + r.Int64N(99_000_000_000),
			"timestamp":      deps.Now().Format(time.RFC3339),
		}
	}

	price := tool.NewFunc(model.ToolSpec{
		Name:        "get_stock_price",
		Description: "Get the current stock price for a given ticker.",
		Schema:      objectSchema(map[string]any{"ticker": stringProp("Stock ticker symbol")}, "ticker"),
	}, func(ctx context.Context, input map[string]any) (map[string]any, error) {
		var args struct {
			Ticker string `json:"ticker"`
		}
		if err := decodeArgs(input, &args); err != nil {
			return nil, err
		}
		if args.Ticker == "" {
			return nil, fmt.Errorf("ticker is required")
		}
		if err := sleep(ctx, deps.Latency); err != nil {
			return nil, err
		}
		return quote(args.Ticker), nil
	})

	buy := tool.NewFunc(model.ToolSpec{
		Name:        "buy_stock",
		Description: "Buy shares of a stock.",
		Schema: objectSchema(map[string]any{
			"ticker":   stringProp("Stock ticker symbol"),
			"quantity": intProp("Number of shares to buy"),
		}, "ticker", "quantity"),
	}, func(ctx context.Context, input map[string]any) (map[string]any, error) {
		var args struct {
			Ticker   string `json:"ticker"`
			Quantity int    `json:"quantity"`
		}
		if err := decodeArgs(input, &args); err != nil {
			return nil, err
		}
		if args.Ticker == "" || args.Quantity <= 0 {
			return nil, fmt.Errorf("a ticker and a positive quantity are required")
		}
		if err := sleep(ctx, deps.Latency); err != nil {
			return nil, err
		}
		p := quote(args.Ticker)["price"].(float64)
		return map[string]any{
			"ticker":          strings.ToUpper(args.Ticker),
			"quantity":        args.Quantity,
			"price_per_share": p,
			"total_cost":      round(p*float64(args.Quantity), 2),
			"status":          "success",
			"timestamp":       deps.Now().Format(time.RFC3339),
		}, nil
	})

	holdings := tool.NewFunc(model.ToolSpec{
		Name:        "get_portfolio",
		Description: "Get the user's portfolio.",
		Schema:      objectSchema(map[string]any{}),
	}, func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		if err := sleep(ctx, deps.Latency); err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(portfolio))
		var total, dayChange float64
		for i, h := range portfolio {
			value := h.price * float64(h.shares)
			total += value
			dayChange += h.change * float64(h.shares)
			rows[i] = map[string]any{
				"ticker":             h.ticker,
				"shares":             h.shares,
				"current_price":      h.price,
				"total_value":        round(value, 2),
				"day_change":         h.change,
				"day_change_percent": round(h.change/(h.price-h.change)*100, 2),
			}
		}
		return map[string]any{
			"holdings":                 rows,
			"total_value":              round(total, 2),
			"total_day_change":         round(dayChange, 2),
			"total_day_change_percent": round(dayChange/total*100, 2),
			"timestamp":                deps.Now().Format(time.RFC3339),
		}, nil
	})

	return tool.NewSet(price, buy, holdings)
}

var (
	cuisines    = []string{"Italian", "Chinese", "Mexican", "Japanese", "American"}
	priceRanges = []string{"$", "$$", "$$$", "$$$$"}
)

// tripTools are the simulated travel listings. Both tools take the trip's
// location, which the trip planner fills in from its extracted details.
func tripTools(deps Deps) *tool.Set {
	location := func(input map[string]any) string {
		loc, _ := input["location"].(string)
		return loc
	}

	accommodations := tool.NewFunc(model.ToolSpec{
		Name:        "list_accommodations",
		Description: "List accommodations for the user's trip.",
		Schema:      objectSchema(map[string]any{}),
	}, func(ctx context.Context, input map[string]any) (map[string]any, error) {
		if err := sleep(ctx, deps.Latency); err != nil {
			return nil, err
		}
		city := location(input)
		r := seeded("stay:" + city)
		list := make([]map[string]any, 5)
		for i := range list {
			list[i] = map[string]any{
				"id":     fmt.Sprintf("acc_%d", i+1),
				"name":   fmt.Sprintf("Hotel %c", 'A'+i),
				"price":  round(between(r, 100, 500), 2),
				"rating": round(between(r, 3.5, 5.0), 1),
				"city":   city,
				"image":  fmt.Sprintf("https://example.com/hotel_%d.jpg", i+1),
			}
		}
		return map[string]any{"accommodations": list, "total": len(list)}, nil
	})

	restaurants := tool.NewFunc(model.ToolSpec{
		Name:        "list_restaurants",
		Description: "List restaurants for the user's trip.",
		Schema:      objectSchema(map[string]any{}),
	}, func(ctx context.Context, input map[string]any) (map[string]any, error) {
		if err := sleep(ctx, deps.Latency); err != nil {
			return nil, err
		}
		r := seeded("eat:" + location(input))
		list := make([]map[string]any, 5)
		for i := range list {
			list[i] = map[string]any{
				"id":          fmt.Sprintf("rest_%d", i+1),
				"name":        fmt.Sprintf("Restaurant %c", 'A'+i),
				"cuisine":     cuisines[r.IntN(len(cuisines))],
				"rating":      round(between(r, 3.5, 5.0), 1),
				"price_range": priceRanges[r.IntN(len(priceRanges))],
				"address":     fmt.Sprintf("%d Main St", 100+r.IntN(900)),
			}
		}
		return map[string]any{"restaurants": list, "total": len(list)}, nil
	})

	return tool.NewSet(accommodations, restaurants)
}
