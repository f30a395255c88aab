package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/langgraph-agents/graph/store"
)

// SubgraphOption configures how an embedded graph's state maps onto its parent's.
type SubgraphOption func(*subgraphNode)

// MapField threads the parent field parentName into the embedded graph's
// field childName and back. Explicit mappings replace the default
// name-matching for childName.
func MapField(parentName, childName string) SubgraphOption {
	return func(s *subgraphNode) {
		s.explicit[childName] = parentName
	}
}

// Embed adapts a compiled graph into a Node.
//
// On each invocation the parent state is projected into the child's schema:
// by default every child field whose name also exists in the parent schema
// is copied in. The child then runs to completion (or to an interrupt) with
// its own step budget, and the change it made to each mapped field is
// returned to the parent as an Update. Append fields contribute only the
// items the child appended, so parent history is never duplicated.
//
// If the child pauses, the parent run pauses too and the checkpoint records
// the child's pending node beneath the parent's. Resume descends to the
// innermost paused node.
func Embed(child *CompiledGraph, opts ...SubgraphOption) Node {
	s := &subgraphNode{child: child, explicit: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type subgraphNode struct {
	child    *CompiledGraph
	explicit map[string]string // child field -> parent field

	// mapping and parent are set on the copy bound to one parent graph.
	mapping map[string]string
	parent  *Schema
}

// projector is implemented by nodes whose fields must line up with the
// parent schema. Compile replaces the node with the one bind returns, so a
// single Embed value may appear in several parent graphs.
type projector interface {
	bind(parent *Schema) (Node, error)
}

func (s *subgraphNode) bind(parent *Schema) (Node, error) {
	if s.child == nil {
		return nil, errors.New("embedded graph is nil")
	}
	mapping := make(map[string]string)
	var errs []error
	for childName, parentName := range s.explicit {
		cf, ok := s.child.schema.Field(childName)
		if !ok {
			errs = append(errs, fmt.Errorf("graph %s has no field %q", s.child.name, childName))
			continue
		}
		pf, ok := parent.Field(parentName)
		if !ok {
			errs = append(errs, fmt.Errorf("parent schema %s has no field %q", parent.name, parentName))
			continue
		}
		if cf.Type() != pf.Type() {
			errs = append(errs, fmt.Errorf("field %q is %s in %s but %s in %s", childName, cf.Type(), s.child.name, pf.Type(), parent.name))
			continue
		}
		mapping[childName] = parentName
	}
	for _, cf := range s.child.schema.fields {
		if _, ok := s.explicit[cf.Name()]; ok {
			continue
		}
		pf, ok := parent.Field(cf.Name())
		if !ok {
			continue
		}
		if cf.Type() != pf.Type() {
			errs = append(errs, fmt.Errorf("shared field %q is %s in %s but %s in %s", cf.Name(), cf.Type(), s.child.name, pf.Type(), parent.name))
			continue
		}
		mapping[cf.Name()] = cf.Name()
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &subgraphNode{child: s.child, explicit: s.explicit, mapping: mapping, parent: parent}, nil
}

// Run projects the parent state in and runs the embedded graph from its start.
func (s *subgraphNode) Run(ctx context.Context, parent State, cfg Config) NodeResult {
	rc := runFromContext(ctx)
	if rc == nil {
		return Fail(fmt.Errorf("embedded graph %s must run inside an Engine", s.child.name))
	}
	values := make(map[string]any, len(s.mapping))
	for childName, parentName := range s.mapping {
		if v, ok := parent.Value(parentName); ok {
			values[childName] = v
		}
	}
	before := s.child.schema.stateFrom(values)

	active, err := s.child.resolve([]string{Start}, before, cfg)
	if err != nil {
		return Fail(err)
	}
	out := rc.engine.loop(ctx, rc, s.child, position{state: before, active: active}, nil)
	return s.result(before, out)
}

// resume continues the embedded graph from its recorded frame.
func (s *subgraphNode) resume(ctx context.Context, rc *runContext, frame store.Frame, input any) NodeResult {
	before, err := s.child.schema.Decode(frame.State)
	if err != nil {
		return Fail(err)
	}
	out := rc.engine.continueFrom(ctx, rc, s.child, frameState{
		state:     before,
		pending:   frame.PendingNode,
		completed: frame.Completed,
		child:     frame.Child,
		step:      frame.Step,
	}, input, nil)
	return s.result(before, out)
}

// result converts the child's outcome into a parent NodeResult.
func (s *subgraphNode) result(before State, out outcome) NodeResult {
	switch out.status {
	case StatusFailed:
		return Fail(out.err)
	case StatusInterrupted:
		raw, err := s.child.schema.Encode(out.state)
		if err != nil {
			return Fail(err)
		}
		return NodeResult{
			Update:    s.projectOut(before, out.state),
			Interrupt: out.interrupt,
			suspended: &store.Frame{
				Graph:       s.child.name,
				State:       raw,
				PendingNode: out.pending,
				Completed:   out.completed,
				Step:        out.step,
				Child:       out.child,
			},
		}
	default:
		return Continue(s.projectOut(before, out.state))
	}
}

// projectOut expresses the child's changes as an update of the parent fields.
// The parent field's reducer decides how a change is expressed.
func (s *subgraphNode) projectOut(before, after State) Update {
	u := Update{}
	for childName, parentName := range s.mapping {
		b, _ := before.Value(childName)
		a, _ := after.Value(childName)
		pf, ok := s.parent.Field(parentName)
		if !ok {
			continue
		}
		if d, changed := pf.delta(b, a); changed {
			u[parentName] = d
		}
	}
	return u
}
