package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/ui"
)

// TripDetails are the facts the trip planner needs before it can list
// accommodations and restaurants.
type TripDetails struct {
	Location       string    `json:"location"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	NumberOfGuests int       `json:"number_of_guests"`
}

// TripDetailsKey keeps the last extracted details until a turn clears them.
var TripDetailsKey = graph.OptionalField[*TripDetails]("trip_details")

var tripSchema = graph.MustSchema(TripPlanner, Messages, Timestamp, TripDetailsKey)

const dateLayout = "2006-01-02"

const classifyPrompt = `You're an AI assistant for planning trips. The user has already specified the following details for their trip:
- location - %s
- start_date - %s
- end_date - %s
- number_of_guests - %d

Your task is to carefully read over the user's conversation, and determine if their trip details are still relevant to their most recent request.
You should set is_relevant to false if they are now asking about a new location, trip duration, or number of guests.
If they do NOT change their request details (or they never specified them), please set is_relevant to true.`

const extractionPrompt = `You're an AI assistant for planning trips. The user has requested information about a trip they want to go on.
Before you can help them, you need to extract the following information from their request:
- location - The location to plan the trip for. Can be a city, state, or country.
- start_date - The start date of the trip. Should be in YYYY-MM-DD format. Optional
- end_date - The end date of the trip. Should be in YYYY-MM-DD format. Optional
- number_of_guests - The number of guests for the trip. Optional

Do NOT guess, or make up any information. If the user did NOT specify a location, please respond with a request for them to specify the location.
You should ONLY send a clarification message if the user did not provide the location.
It should be a single sentence, along the lines of "Please specify the location for the trip you want to go on".`

const tripToolsPrompt = "You are an AI assistant who helps users book trips. Use the user's most recent message(s) to contextually generate a response."

var (
	classifyTool = model.ToolSpec{
		Name:        "classify_trip_relevance",
		Description: "Classify whether the trip details are still relevant.",
		Schema: objectSchema(map[string]any{
			"is_relevant": map[string]any{"type": "boolean", "description": "Whether the trip details are still relevant to the user's request"},
		}, "is_relevant"),
	}
	extractTool = model.ToolSpec{
		Name:        "extract_trip_details",
		Description: "Extract trip details from the conversation.",
		Schema: objectSchema(map[string]any{
			"location":         stringProp("The location to plan the trip for. Can be a city, state, or country."),
			"start_date":       stringProp("The start date of the trip. Should be in YYYY-MM-DD format"),
			"end_date":         stringProp("The end date of the trip. Should be in YYYY-MM-DD format"),
			"number_of_guests": intProp("The number of guests for the trip. Should default to 2 if not specified"),
		}, "location"),
	}
)

// NewTripPlanner compiles the trip planner. Known details are checked for
// relevance to the latest request; missing or stale details are extracted
// again before the listing tools run.
func NewTripPlanner(deps Deps) (*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	m := deps.modelFor(TripPlanner)
	tools := tripTools(deps)

	classify := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		td := TripDetailsKey.Get(s)
		if td == nil {
			return graph.Continue(nil)
		}
		prompt := fmt.Sprintf(classifyPrompt, td.Location, td.StartDate.Format(dateLayout), td.EndDate.Format(dateLayout), td.NumberOfGuests)
		args, _, err := model.Extract(ctx, m, []model.Message{
			model.User(prompt),
			model.User("Here is the entire conversation so far:\n" + model.Transcript(Messages.Get(s))),
		}, classifyTool)
		if errors.Is(err, model.ErrNoToolCall) {
			return graph.Continue(nil)
		}
		if err != nil {
			return graph.Fail(err)
		}
		if relevant, ok := args["is_relevant"].(bool); ok && !relevant {
			return graph.Continue(TripDetailsKey.Clear())
		}
		return graph.Continue(nil)
	})

	extraction := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		args, out, err := model.Extract(ctx, m, []model.Message{
			model.User(extractionPrompt),
			model.User("Here is the entire conversation so far:\n" + model.Transcript(Messages.Get(s))),
		}, extractTool)
		if errors.Is(err, model.ErrNoToolCall) {
			return graph.Continue(Messages.Set(toList(deps.reply(out))))
		}
		if err != nil {
			return graph.Fail(err)
		}

		td, err := tripDetails(args, deps.Now())
		if err != nil {
			return graph.Fail(err)
		}
		call, _ := out.Call(extractTool.Name)
		return graph.Continue(graph.Updates(
			TripDetailsKey.Set(td),
			Messages.Set(toList(
				model.Message{ID: deps.NewID(), Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call}},
				model.ToolResult(call.ID, "Successfully extracted trip details"),
			)),
		))
	})

	callTools := graph.NodeFunc(func(ctx context.Context, s graph.State, _ graph.Config) graph.NodeResult {
		td := TripDetailsKey.Get(s)
		if td == nil {
			return graph.Fail(errors.New("no trip details found"))
		}
		out, err := m.Chat(ctx, withSystem(tripToolsPrompt, Messages.Get(s)), tools.Specs())
		if err != nil {
			return graph.Fail(err)
		}
		if len(out.ToolCalls) == 0 {
			return graph.Fail(errors.New("no tool calls found"))
		}

		response := deps.reply(out)
		msgs := toList(response)
		for _, tc := range out.ToolCalls {
			tc.Input = map[string]any{"location": td.Location}
			result, msg, err := tools.Execute(ctx, tc)
			if err != nil {
				return graph.Fail(err)
			}
			switch tc.Name {
			case "list_accommodations":
				ui.Push(ctx, ui.Event{
					Name: "accommodations-list",
					Props: map[string]any{
						"toolCallId":     tc.ID,
						"accommodations": result["accommodations"],
						"tripDetails":    td,
					},
				}.ForMessage(response.ID))
			case "list_restaurants":
				ui.Push(ctx, ui.Event{
					Name: "restaurants-list",
					Props: map[string]any{
						"tripDetails": td,
						"restaurants": result["restaurants"],
					},
				}.ForMessage(response.ID))
			}
			msgs = append(msgs, msg)
		}
		return graph.Continue(graph.Updates(
			Messages.Set(msgs),
			Timestamp.Set(deps.Now()),
		))
	})

	return graph.NewBuilder(TripPlanner, tripSchema).
		AddNode("classify", classify).
		AddNode("extraction", extraction).
		AddNode("callTools", callTools).
		AddConditionalEdges(graph.Start, routeIfDetails("classify", "extraction"), "classify", "extraction").
		AddConditionalEdges("classify", routeIfDetails("callTools", "extraction"), "callTools", "extraction").
		AddConditionalEdges("extraction", routeIfDetails("callTools", graph.End), "callTools", graph.End).
		AddEdge("callTools", graph.End).
		Compile()
}

func routeIfDetails(known, missing string) graph.Router {
	return func(s graph.State, _ graph.Config) string {
		if TripDetailsKey.Get(s) == nil {
			return missing
		}
		return known
	}
}

// tripDetails builds details from extracted arguments. Missing dates default
// to a one week trip: four weeks out when neither is given, otherwise a week
// after the start or before the end.
func tripDetails(args map[string]any, now time.Time) (*TripDetails, error) {
	var raw struct {
		Location       string `json:"location"`
		StartDate      string `json:"start_date"`
		EndDate        string `json:"end_date"`
		NumberOfGuests int    `json:"number_of_guests"`
	}
	if err := decodeArgs(args, &raw); err != nil {
		return nil, fmt.Errorf("decode trip details: %w", err)
	}
	if raw.Location == "" {
		return nil, errors.New("trip details are missing a location")
	}

	start, end, err := tripDates(raw.StartDate, raw.EndDate, now)
	if err != nil {
		return nil, err
	}
	guests := raw.NumberOfGuests
	if guests <= 0 {
		guests = 2
	}
	return &TripDetails{Location: raw.Location, StartDate: start, EndDate: end, NumberOfGuests: guests}, nil
}

func tripDates(startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	const week = 7 * 24 * time.Hour
	parse := func(v string) (time.Time, error) {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid trip date %q: %w", v, err)
		}
		return t, nil
	}

	switch {
	case startDate == "" && endDate == "":
		return now.Add(4 * week), now.Add(5 * week), nil
	case endDate == "":
		start, err := parse(startDate)
		return start, start.Add(week), err
	case startDate == "":
		end, err := parse(endDate)
		return end.Add(-week), end, err
	}
	start, err := parse(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parse(endDate)
	return start, end, err
}
