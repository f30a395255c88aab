package graph

import (
	"fmt"
	"slices"
)

// Sentinel node names marking where a run enters and leaves a graph.
const (
	Start = "__start__"
	End   = "__end__"
)

// Edge is a static transition between two nodes.
type Edge struct {
	From string
	To   string
}

// Router chooses the next node after From from the merged state and config.
// It must return one of the branch's candidates or End.
type Router func(state State, cfg Config) string

// Branch is a conditional transition: Router picks among Candidates.
type Branch struct {
	From       string
	Router     Router
	Candidates []string
}

// allows reports whether target is a legal routing result for the branch.
func (b Branch) allows(target string) bool {
	return target == End || slices.Contains(b.Candidates, target)
}

// route evaluates the router, converting a panic into a RoutingError.
func (b Branch) route(state State, cfg Config) (target string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RoutingError{Node: b.From, Candidates: b.Candidates, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	target = b.Router(state, cfg)
	if !b.allows(target) {
		return "", &RoutingError{Node: b.From, Value: target, Candidates: b.Candidates}
	}
	return target, nil
}
