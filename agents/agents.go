// Package agents contains the conversational agents built on the graph
// engine: a supervisor that routes each user turn to a specialised agent,
// and the agents themselves.
//
// Every agent is an ordinary compiled graph. Register compiles them all and
// adds them to an Engine under their public names:
//
//	e, _ := graph.New(store.NewMemStore())
//	if err := agents.Register(e, agents.Deps{Model: chatModel}); err != nil {
//		return err
//	}
//	res, err := e.Invoke(ctx, agents.Supervisor, agents.Input("What is AAPL trading at?"), graph.Config{})
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
)

// Graph names under which Register adds the agents.
const (
	Supervisor   = "agent"
	Chat         = "chat"
	EmailAgent   = "email_agent"
	Stockbroker  = "stockbroker"
	TripPlanner  = "trip_planner"
	OpenCode     = "open_code"
	PizzaOrderer = "pizza_orderer"
	WriterAgent  = "writer_agent"
)

// Deps are the collaborators the agents call from their node bodies.
type Deps struct {
	// Model answers every agent unless Models holds an override for the
	// agent's graph name.
	Model  model.ChatModel
	Models map[string]model.ChatModel

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string

	// Latency simulates the wait of the pizza shop and stock tools.
	Latency time.Duration

	// Retries is how many more times a failed model turn is attempted by
	// the nodes that only talk to the model. RetryDelay is the base backoff.
	Retries    int
	RetryDelay time.Duration

	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// retrying wraps a node whose only side effect is its model call.
func (d Deps) retrying(n graph.Node) graph.Node {
	if d.Retries <= 0 {
		return n
	}
	wrapped, err := graph.Retry(n, graph.RetryPolicy{
		MaxAttempts: d.Retries + 1,
		BaseDelay:   d.RetryDelay,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		OnRetry: func(attempt int, err error) {
			d.Logger.Warn("model turn failed, retrying", "attempt", attempt+1, "error", err)
		},
	})
	if err != nil {
		d.Logger.Error("invalid retry policy", "error", err)
		return n
	}
	return wrapped
}

func (d Deps) modelFor(name string) model.ChatModel {
	if m, ok := d.Models[name]; ok && m != nil {
		return m
	}
	return d.Model
}

// Registry compiles every agent graph. The supervisor embeds the others, so
// they are compiled first and shared.
func Registry(deps Deps) ([]*graph.CompiledGraph, error) {
	deps = deps.withDefaults()
	if deps.Model == nil {
		return nil, fmt.Errorf("agents: a chat model is required")
	}

	builders := []func(Deps) (*graph.CompiledGraph, error){
		NewChat, NewEmail, NewStockbroker, NewTripPlanner, NewOpenCode, NewPizzaOrderer, NewWriter,
	}
	graphs := make([]*graph.CompiledGraph, 0, len(builders)+1)
	byName := make(map[string]*graph.CompiledGraph, len(builders))
	for _, build := range builders {
		g, err := build(deps)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
		byName[g.Name()] = g
	}

	sup, err := newSupervisor(deps, byName)
	if err != nil {
		return nil, err
	}
	return append([]*graph.CompiledGraph{sup}, graphs...), nil
}

// Register compiles every agent graph and registers it with e.
func Register(e *graph.Engine, deps Deps) error {
	graphs, err := Registry(deps)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		if err := e.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Input is the update that starts a turn: one user message.
func Input(content string) graph.Update {
	return Messages.Set([]model.Message{{ID: uuid.NewString(), Role: model.RoleUser, Content: content}})
}

// reply stamps an assistant message with a fresh id.
func (d Deps) reply(out model.ChatOut) model.Message {
	return out.Message(d.NewID())
}

func (d Deps) say(content string) model.Message {
	return model.Message{ID: d.NewID(), Role: model.RoleAssistant, Content: content}
}

func withSystem(prompt string, history []model.Message) []model.Message {
	msgs := make([]model.Message, 0, len(history)+1)
	msgs = append(msgs, model.System(prompt))
	return append(msgs, history...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
