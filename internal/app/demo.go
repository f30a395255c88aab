package app

import (
	"regexp"
	"strings"

	"github.com/dshills/langgraph-agents/graph/model"
)

// DemoModel returns a scripted chat model that answers from keywords in the
// latest user message. It lets every agent run end to end without a
// provider account.
func DemoModel() *model.MockChatModel {
	return &model.MockChatModel{Respond: demoRespond}
}

var (
	tickerPattern   = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	quantityPattern = regexp.MustCompile(`\b(\d+)\b`)
	placePattern    = regexp.MustCompile(`\b(?:[Tt]o|[Ii]n|[Nn]ear)\s+([A-Z][\w]*(?:\s+[A-Z][\w]*)*)`)
	emailPattern    = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`)
)

var demoRoutes = []struct {
	route    string
	keywords []string
}{
	{"stockbroker", []string{"stock", "portfolio", "share", "ticker", "buy"}},
	{"tripPlanner", []string{"trip", "travel", "hotel", "restaurant", "vacation", "stay"}},
	{"openCode", []string{"todo", "app", "code"}},
	{"orderPizza", []string{"pizza"}},
	{"writerAgent", []string{"write", "poem", "essay", "document", "story"}},
}

func demoRespond(msgs []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	text := ""
	if m, ok := model.LastOfRole(msgs, model.RoleUser); ok {
		text = m.Content
	}
	lower := strings.ToLower(text)

	// A reply to tool output closes the exchange.
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == model.RoleTool && len(tools) == 0 {
		return model.ChatOut{Text: "All done. Anything else?"}, nil
	}
	if len(tools) == 0 {
		return model.ChatOut{Text: demoProse(text)}, nil
	}

	switch tools[0].Name {
	case "route_to_agent":
		for _, r := range demoRoutes {
			for _, kw := range r.keywords {
				if strings.Contains(lower, kw) {
					return demoCall("route_to_agent", map[string]any{"agent": r.route}), nil
				}
			}
		}
		return model.ChatOut{Text: "Let me answer that myself."}, nil

	case "get_stock_price":
		switch {
		case strings.Contains(lower, "portfolio"):
			return demoCall("get_portfolio", nil), nil
		case strings.Contains(lower, "buy"):
			qty := "10"
			if m := quantityPattern.FindStringSubmatch(text); m != nil {
				qty = m[1]
			}
			return demoCall("buy_stock", map[string]any{"ticker": demoTicker(text), "quantity": qty}), nil
		}
		return demoCall("get_stock_price", map[string]any{"ticker": demoTicker(text)}), nil

	case "draft_email":
		to := emailPattern.FindString(text)
		if to == "" {
			return model.ChatOut{Text: "Who should I send the email to?"}, nil
		}
		return demoCall("draft_email", map[string]any{
			"to":      to,
			"subject": "Quick note",
			"body":    "Hi,\n\n" + text + "\n\nBest regards",
		}), nil

	case "plan":
		return model.ChatOut{Text: "Here is how I would build it."}, nil

	case "classify_trip_relevance":
		_, moved := demoPlace(text)
		return demoCall("classify_trip_relevance", map[string]any{"is_relevant": !moved}), nil

	case "extract_trip_details":
		place, ok := demoPlace(text)
		if !ok {
			return model.ChatOut{Text: "Where would you like to go?"}, nil
		}
		return demoCall("extract_trip_details", map[string]any{"location": place}), nil

	case "find_shop":
		place, ok := demoPlace(text)
		if !ok {
			place = "San Francisco"
		}
		return demoCall("find_shop", map[string]any{"location": place}), nil

	case "place_order":
		return demoCall("place_order", map[string]any{
			"address":      "123 Main St",
			"phone_number": "415-555-0100",
			"order":        text,
		}), nil

	case "draft_text_document":
		return demoCall("draft_text_document", map[string]any{
			"title":       "Draft",
			"description": "A document for: " + text,
		}), nil
	}
	return model.ChatOut{Text: demoProse(text)}, nil
}

func demoCall(name string, input map[string]any) model.ChatOut {
	return model.ChatOut{ToolCalls: []model.ToolCall{{ID: "demo-" + name, Name: name, Input: input}}}
}

func demoTicker(text string) string {
	for _, t := range tickerPattern.FindAllString(text, -1) {
		if t != "I" {
			return t
		}
	}
	return "AAPL"
}

// demoPlace returns the capitalized place named after "to", "in" or "near".
func demoPlace(text string) (string, bool) {
	m := placePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func demoProse(request string) string {
	if request == "" {
		return "Hello! How can I help?"
	}
	return "Here is a first draft.\n\nYou asked: " + request + "\n\nLet me know what to change."
}
