package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

func tripAnswers() map[string]model.ChatOut {
	return map[string]model.ChatOut{
		"extract_trip_details": call("extract_trip_details", map[string]any{
			"location": "Tokyo", "number_of_guests": float64(3),
		}),
		"classify_trip_relevance": call("classify_trip_relevance", map[string]any{"is_relevant": true}),
		"list_accommodations": {ToolCalls: []model.ToolCall{
			{ID: "a1", Name: "list_accommodations"},
			{ID: "r1", Name: "list_restaurants"},
		}},
	}
}

func TestTripPlanner(t *testing.T) {
	answers := tripAnswers()
	m := byTool(answers)
	e := newEngine(t, m)
	ctx := context.Background()
	cfg := graph.Config{ThreadID: "trip-1"}

	res, err := e.Invoke(ctx, TripPlanner, Input("Plan a trip to Tokyo for 3"), cfg)
	require.NoError(t, err)
	require.Equal(t, graph.StatusCompleted, res.Status)

	td := TripDetailsKey.Get(res.State)
	require.NotNil(t, td)
	assert.Equal(t, "Tokyo", td.Location)
	assert.Equal(t, 3, td.NumberOfGuests)
	assert.Equal(t, testNow.Add(28*24*time.Hour), td.StartDate)

	require.Len(t, res.UI, 2)
	assert.Equal(t, "accommodations-list", res.UI[0].Name)
	assert.Equal(t, "a1", res.UI[0].Props["toolCallId"])
	assert.Equal(t, "restaurants-list", res.UI[1].Name)

	msgs := Messages.Get(res.State)
	require.Len(t, msgs, 6)
	assert.Equal(t, "Successfully extracted trip details", msgs[2].Content)
	assert.Equal(t, "a1", msgs[4].ToolCallID)
	assert.Contains(t, msgs[4].Content, `"city":"Tokyo"`)

	// Known details are checked for relevance instead of extracted again.
	res, err = e.Invoke(ctx, TripPlanner, Input("Any other restaurants?"), cfg)
	require.NoError(t, err)
	assert.NotNil(t, TripDetailsKey.Get(res.State))
	assert.Len(t, res.UI, 4)

	// A new destination clears the details; without a location the planner asks.
	answers["classify_trip_relevance"] = call("classify_trip_relevance", map[string]any{"is_relevant": false})
	answers["extract_trip_details"] = model.ChatOut{Text: "Please specify the location for the trip you want to go on."}
	res, err = e.Invoke(ctx, TripPlanner, Input("Actually, somewhere else"), cfg)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Nil(t, TripDetailsKey.Get(res.State))
	assert.Equal(t, "Please specify the location for the trip you want to go on.", last(t, res.State).Content)
}

func TestTripPlanner_NoToolCallsFails(t *testing.T) {
	answers := tripAnswers()
	answers["list_accommodations"] = model.ChatOut{Text: "Have fun!"}
	e := newEngine(t, byTool(answers))

	res, err := e.Invoke(context.Background(), TripPlanner, Input("Tokyo trip"), graph.Config{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, graph.StatusFailed, res.Status)
}

func TestTripDates(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2026, 6, d, 0, 0, 0, 0, time.UTC) }
	week := 7 * 24 * time.Hour

	tests := []struct {
		name       string
		start, end string
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{"neither", "", "", now.Add(4 * week), now.Add(5 * week)},
		{"start only", "2026-06-10", "", day(10), day(17)},
		{"end only", "", "2026-06-10", day(3), day(10)},
		{"both", "2026-06-01", "2026-06-20", day(1), day(20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tripDates(tt.start, tt.end, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}

	_, _, err := tripDates("next friday", "", now)
	assert.Error(t, err)
}

func TestTripDetails_Defaults(t *testing.T) {
	td, err := tripDetails(map[string]any{"location": "Lisbon"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, td.NumberOfGuests)

	_, err = tripDetails(map[string]any{}, testNow)
	assert.Error(t, err)
}
