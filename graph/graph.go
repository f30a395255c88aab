package graph

import (
	"errors"
	"fmt"
	"slices"
)

// Builder collects the definition of a graph before it is compiled.
//
// Builder methods return the builder for chaining. Mistakes are not reported
// until Compile, which returns every problem at once:
//
//	g, err := graph.NewBuilder("email_agent", schema).
//	    AddNode("writeEmail", writeEmail).
//	    AddNode("interrupt", review, graph.WithResumeField(HumanResponse)).
//	    AddEdge(graph.Start, "writeEmail").
//	    AddEdge("writeEmail", "interrupt").
//	    AddConditionalEdges("interrupt", routeResponse, "sendEmail", "rewriteEmail").
//	    Compile()
type Builder struct {
	name     string
	schema   *Schema
	nodes    []*nodeSpec
	edges    []Edge
	branches []Branch
	errs     []error
}

// NewBuilder starts a graph definition over the given schema.
func NewBuilder(name string, schema *Schema) *Builder {
	return &Builder{name: name, schema: schema}
}

// AddNode declares a node. Names must be unique within the graph and must not
// collide with the Start and End sentinels.
func (b *Builder) AddNode(name string, node Node, opts ...NodeOption) *Builder {
	switch {
	case name == "":
		b.fail(InvalidNode, "node with empty name")
		return b
	case name == Start || name == End:
		b.fail(InvalidNode, fmt.Sprintf("node name %q is reserved", name))
		return b
	case node == nil:
		b.fail(InvalidNode, fmt.Sprintf("node %s has no implementation", name))
		return b
	}
	for _, n := range b.nodes {
		if n.name == name {
			b.fail(DuplicateNode, fmt.Sprintf("node %s declared twice", name))
			return b
		}
	}
	spec := &nodeSpec{name: name, node: node, order: len(b.nodes)}
	for _, opt := range opts {
		opt(spec)
	}
	b.nodes = append(b.nodes, spec)
	return b
}

// AddEdge declares a static transition from one node to another.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges = append(b.edges, Edge{From: from, To: to})
	return b
}

// AddConditionalEdges declares a router evaluated after from completes.
// The router must return one of candidates or End.
func (b *Builder) AddConditionalEdges(from string, router Router, candidates ...string) *Builder {
	b.branches = append(b.branches, Branch{From: from, Router: router, Candidates: slices.Clone(candidates)})
	return b
}

func (b *Builder) fail(kind ValidationKind, detail string) {
	b.errs = append(b.errs, &GraphValidationError{Graph: b.name, Kind: kind, Detail: detail})
}

// Compile validates the definition and returns an immutable executable graph.
// All validation failures are joined into the returned error; each matches
// ErrGraphValidation.
func (b *Builder) Compile() (*CompiledGraph, error) {
	if b.schema == nil {
		b.fail(InvalidNode, "graph has no schema")
		return nil, errors.Join(b.errs...)
	}
	g := &CompiledGraph{
		name:     b.name,
		schema:   b.schema,
		nodes:    make([]*nodeSpec, len(b.nodes)),
		byName:   make(map[string]*nodeSpec, len(b.nodes)),
		static:   make(map[string][]string),
		branches: make(map[string][]Branch),
	}
	for i, n := range b.nodes {
		spec := *n
		g.nodes[i] = &spec
		g.byName[n.name] = &spec
	}
	declared := func(name string) bool {
		_, ok := g.byName[name]
		return ok
	}

	for _, n := range g.nodes {
		if n.resumeField != "" && !b.schema.Has(n.resumeField) {
			b.fail(DanglingReference, fmt.Sprintf("node %s resumes into undeclared field %q", n.name, n.resumeField))
		}
		if p, ok := n.node.(projector); ok {
			bound, err := p.bind(b.schema)
			if err != nil {
				b.fail(ProjectionMismatch, fmt.Sprintf("node %s: %v", n.name, err))
				continue
			}
			n.node = bound
		}
	}

	for _, e := range b.edges {
		switch {
		case e.To == Start:
			b.fail(MalformedSentinel, fmt.Sprintf("edge %s -> %s enters the start sentinel", e.From, e.To))
			continue
		case e.From == End:
			b.fail(MalformedSentinel, fmt.Sprintf("edge %s -> %s leaves the end sentinel", e.From, e.To))
			continue
		}
		if e.From != Start && !declared(e.From) {
			b.fail(DanglingReference, fmt.Sprintf("edge %s -> %s: unknown source %s", e.From, e.To, e.From))
			continue
		}
		if e.To != End && !declared(e.To) {
			b.fail(DanglingReference, fmt.Sprintf("edge %s -> %s: unknown target %s", e.From, e.To, e.To))
			continue
		}
		if !slices.Contains(g.static[e.From], e.To) {
			g.static[e.From] = append(g.static[e.From], e.To)
		}
	}

	for _, br := range b.branches {
		switch {
		case br.From == End:
			b.fail(MalformedSentinel, "conditional edge leaves the end sentinel")
			continue
		case br.From != Start && !declared(br.From):
			b.fail(DanglingReference, fmt.Sprintf("conditional edge from unknown node %s", br.From))
			continue
		case br.Router == nil:
			b.fail(InvalidNode, fmt.Sprintf("conditional edge from %s has no router", br.From))
			continue
		case len(br.Candidates) == 0:
			b.fail(UnreachableCandidate, fmt.Sprintf("conditional edge from %s declares no candidates", br.From))
			continue
		}
		valid := true
		for _, c := range br.Candidates {
			switch {
			case c == Start:
				b.fail(MalformedSentinel, fmt.Sprintf("conditional edge from %s may route to the start sentinel", br.From))
				valid = false
			case c != End && !declared(c):
				b.fail(UnreachableCandidate, fmt.Sprintf("conditional edge from %s names unknown candidate %s", br.From, c))
				valid = false
			}
		}
		if valid {
			g.branches[br.From] = append(g.branches[br.From], br)
		}
	}

	if len(g.static[Start]) == 0 && len(g.branches[Start]) == 0 {
		b.fail(MalformedSentinel, "no edge leaves the start sentinel")
	}

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return g, nil
}

// CompiledGraph is the immutable, executable form of a graph definition.
// It is safe for concurrent use by multiple runs.
type CompiledGraph struct {
	name     string
	schema   *Schema
	nodes    []*nodeSpec
	byName   map[string]*nodeSpec
	static   map[string][]string
	branches map[string][]Branch
}

// Name returns the graph name.
func (g *CompiledGraph) Name() string { return g.name }

// Schema returns the graph's state schema.
func (g *CompiledGraph) Schema() *Schema { return g.schema }

// Nodes returns the node names in declaration order.
func (g *CompiledGraph) Nodes() []string {
	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.name
	}
	return names
}

// successors resolves where the run goes after node completes. Static targets
// and router results are unioned; a node with no outgoing edge routes to End.
func (g *CompiledGraph) successors(node string, state State, cfg Config) ([]string, error) {
	next := slices.Clone(g.static[node])
	for _, br := range g.branches[node] {
		target, err := br.route(state, cfg)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(next, target) {
			next = append(next, target)
		}
	}
	if len(next) == 0 {
		next = append(next, End)
	}
	return next, nil
}

// resolve unions the successors of the given nodes and orders the result by
// declaration order, with End last.
func (g *CompiledGraph) resolve(nodes []string, state State, cfg Config) ([]string, error) {
	seen := make(map[string]bool)
	for _, n := range g.ordered(nodes) {
		next, err := g.successors(n, state, cfg)
		if err != nil {
			return nil, err
		}
		for _, t := range next {
			seen[t] = true
		}
	}
	out := make([]string, 0, len(seen))
	for _, n := range g.nodes {
		if seen[n.name] {
			out = append(out, n.name)
		}
	}
	if seen[End] {
		out = append(out, End)
	}
	return out, nil
}

// ordered sorts node names by declaration order. Start sorts first and
// unknown names are dropped.
func (g *CompiledGraph) ordered(names []string) []string {
	out := make([]string, 0, len(names))
	if slices.Contains(names, Start) {
		out = append(out, Start)
	}
	for _, n := range g.nodes {
		if slices.Contains(names, n.name) {
			out = append(out, n.name)
		}
	}
	return out
}
