package graph

import (
	"context"
	"time"

	"github.com/dshills/langgraph-agents/graph/store"
)

// Node represents a unit of work in a graph.
//
// Nodes own no state. Each invocation receives the merged state of the
// previous step and the run's Config, and returns a NodeResult that can:
//   - Carry a partial Update for the state
//   - Request human input via Interrupt
//   - Report a failure via Err
//
// Nodes never choose their successor; edges declared on the graph do.
// A compiled graph can be embedded as a Node with Embed.
type Node interface {
	// Run executes the node's logic. Node bodies may block on external
	// collaborators and should honor ctx cancellation and deadlines.
	Run(ctx context.Context, state State, cfg Config) NodeResult
}

// NodeResult represents the output of a node invocation.
type NodeResult struct {
	// Update is the partial state produced by the node. It is merged
	// even when Interrupt is set.
	Update Update

	// Interrupt, when non-nil, pauses the run after this step until
	// Engine.Resume supplies input for the node's resume field.
	Interrupt *Interrupt

	// Err aborts the run. It is reported as a *NodeExecutionError.
	Err error

	// suspended holds the frame of an embedded graph that paused.
	suspended *store.Frame
}

// Interrupt describes a pause requested by a node.
type Interrupt struct {
	// Graph and Node identify where the pause originated. The Engine fills them in.
	Graph string `json:"graph,omitempty"`
	Node  string `json:"node,omitempty"`

	// Value is shown to the human, for example the draft awaiting review.
	Value any `json:"value,omitempty"`
}

// Continue returns a result that merges u and lets the edges route onward.
func Continue(u Update) NodeResult {
	return NodeResult{Update: u}
}

// Fail returns a result that aborts the run with err.
func Fail(err error) NodeResult {
	return NodeResult{Err: err}
}

// Pause returns a result that merges u and suspends the run, presenting value
// to whoever resumes it.
func Pause(value any, u Update) NodeResult {
	return NodeResult{Update: u, Interrupt: &Interrupt{Value: value}}
}

// NodeFunc is a function adapter that implements the Node interface.
//
// Example:
//
//	greet := graph.NodeFunc(func(ctx context.Context, s graph.State, cfg graph.Config) graph.NodeResult {
//	    return graph.Continue(Greeting.Set("hello"))
//	})
type NodeFunc func(ctx context.Context, state State, cfg Config) NodeResult

// Run implements the Node interface for NodeFunc.
func (f NodeFunc) Run(ctx context.Context, state State, cfg Config) NodeResult {
	return f(ctx, state, cfg)
}

// NodeOption configures a node when it is added to a Builder.
type NodeOption func(*nodeSpec)

// WithResumeField declares the field that receives human input when a run
// paused at this node is resumed.
func WithResumeField(f FieldSpec) NodeOption {
	return func(n *nodeSpec) {
		n.resumeField = f.Name()
	}
}

// WithTimeout bounds each invocation of the node with a context deadline.
// It overrides the engine-wide WithDefaultNodeTimeout.
func WithTimeout(d time.Duration) NodeOption {
	return func(n *nodeSpec) {
		n.policy.Timeout = d
	}
}

type nodeSpec struct {
	name        string
	node        Node
	order       int
	resumeField string
	policy      NodePolicy
}
