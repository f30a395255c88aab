package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/langgraph-agents/graph/emit"
	"github.com/dshills/langgraph-agents/graph/store"
	"github.com/dshills/langgraph-agents/graph/ui"
)

// Status is the lifecycle state of a run.
type Status = store.Status

// Run statuses.
const (
	StatusRunning     = store.StatusRunning
	StatusInterrupted = store.StatusInterrupted
	StatusCompleted   = store.StatusCompleted
	StatusFailed      = store.StatusFailed
)

// RunResult is the outcome of Invoke, Run or Resume.
type RunResult struct {
	ThreadID string
	Graph    string
	Status   Status

	// State is the state at the point the run stopped: final for
	// COMPLETED, at the pause for INTERRUPTED, at the failure for FAILED.
	State State

	// Interrupt describes what the run is waiting for when INTERRUPTED.
	// For nested graphs it names the innermost paused node.
	Interrupt *Interrupt

	// Steps is the number of steps taken by the top-level graph.
	Steps int

	// UI is the run's UI event log in push order.
	UI []ui.Event

	// Checkpoint is the record persisted for the thread.
	Checkpoint *store.Checkpoint

	// Err is set when Status is FAILED.
	Err error
}

// Engine drives compiled graphs and persists their progress.
//
// The Engine is an in-process run controller: each call advances one thread
// until the graph ends, pauses for input, or fails. Checkpoints are written
// to the store after every step with compare-and-swap, so two callers can
// never advance the same thread at once.
//
// Graphs are registered by name so that a paused thread can be resumed by
// thread id alone.
type Engine struct {
	store store.Store
	cfg   engineConfig

	mu     sync.RWMutex
	graphs map[string]*CompiledGraph
}

// New creates an Engine persisting to st.
func New(st store.Store, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, &EngineError{Message: "store must not be nil", Code: "INVALID_OPTION"}
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Engine{store: st, cfg: cfg, graphs: make(map[string]*CompiledGraph)}, nil
}

// Register makes g available to Invoke and Resume under its name.
func (e *Engine) Register(g *CompiledGraph) error {
	if g == nil {
		return &EngineError{Message: "graph must not be nil", Code: "INVALID_GRAPH"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.graphs[g.name]; ok && existing != g {
		return &EngineError{Message: fmt.Sprintf("graph %s already registered", g.name), Code: "DUPLICATE_GRAPH"}
	}
	e.graphs[g.name] = g
	return nil
}

// Graph returns the registered graph with the given name.
func (e *Engine) Graph(name string) (*CompiledGraph, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.graphs[name]
	return g, ok
}

// Graphs returns the registered graph names in sorted order.
func (e *Engine) Graphs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.graphs))
	for name := range e.graphs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs the registered graph graphName with input merged over its
// defaults. See Run.
func (e *Engine) Invoke(ctx context.Context, graphName string, input Update, cfg Config) (*RunResult, error) {
	g, ok := e.Graph(graphName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, graphName)
	}
	return e.Run(ctx, g, input, cfg)
}

// Run executes g on the thread named by cfg.ThreadID, generating a thread id
// when it is empty. g is registered if it is not already.
//
// A thread whose previous run COMPLETED on the same graph continues from
// that run's final state, so conversations accumulate across invocations.
// A thread waiting for input must be resumed or discarded first.
//
// Errors that prevent the run from starting (unknown graph, invalid input,
// busy thread) are returned with a nil result. Once the run has started, a
// failure is reported both as the returned error and in a FAILED result.
// An interrupted run returns a nil error.
func (e *Engine) Run(ctx context.Context, g *CompiledGraph, input Update, cfg Config) (*RunResult, error) {
	if err := e.Register(g); err != nil {
		return nil, err
	}
	if cfg.ThreadID == "" {
		cfg.ThreadID = uuid.NewString()
	}
	threadID := cfg.ThreadID

	base := g.schema.Defaults()
	cp := &store.Checkpoint{ThreadID: threadID, GraphName: g.name}
	var (
		expected int64
		prior    []ui.Event
	)
	existing, err := e.store.Load(ctx, threadID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	default:
		expected = existing.Version
		cp.CreatedAt = existing.CreatedAt
		switch existing.Status {
		case StatusRunning:
			return nil, &ConcurrentResumeError{ThreadID: threadID}
		case StatusInterrupted:
			return nil, fmt.Errorf("thread %s: %w", threadID, ErrThreadInterrupted)
		case StatusCompleted:
			if existing.GraphName == g.name {
				if base, err = g.schema.Decode(existing.State); err != nil {
					return nil, fmt.Errorf("thread %s: %w", threadID, err)
				}
				if prior, err = decodeUI(existing.UI); err != nil {
					return nil, fmt.Errorf("thread %s: %w", threadID, err)
				}
			}
		}
	}

	state, err := g.schema.Merge(base, input)
	if err != nil {
		return nil, err
	}

	rc := e.newRun(threadID, g.name, cfg, prior)
	ctx = rc.attach(ctx)

	cp.Status = StatusRunning
	if err := e.write(ctx, rc, g, cp, expected, func(cp *store.Checkpoint) error {
		return fillCheckpoint(cp, g, state, cfg, rc.stream)
	}); err != nil {
		return nil, err
	}

	e.cfg.logger.Info("run started", "thread_id", threadID, "graph", g.name)
	e.cfg.emitter.Emit(emit.Event{ThreadID: threadID, Graph: g.name, Msg: emit.MsgRunStart})

	var out outcome
	active, err := g.resolve([]string{Start}, state, cfg)
	if err != nil {
		out = outcome{status: StatusFailed, state: state, failedNode: Start, err: err}
	} else {
		out = e.loop(ctx, rc, g, position{state: state, active: active}, e.checkpointer(ctx, rc, g, cp))
	}
	return e.finish(ctx, rc, g, cp, out)
}

// Resume continues a thread paused by an interrupt, merging input into the
// paused node's resume field. The paused node is not invoked again; routing
// continues from its outgoing edges as if it had just completed.
//
// input may be a value of the resume field's type, a value that marshals to
// JSON compatible with it, or raw JSON. A nil input resumes with the field's
// zero value.
//
// Resume fails with *InvalidResumeStateError when the thread does not exist
// or is not INTERRUPTED, and with *ConcurrentResumeError when another caller
// is advancing it. In both cases nothing is modified.
func (e *Engine) Resume(ctx context.Context, threadID string, input any) (*RunResult, error) {
	cp, err := e.store.Load(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &InvalidResumeStateError{ThreadID: threadID}
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	switch cp.Status {
	case StatusInterrupted:
	case StatusRunning:
		return nil, &ConcurrentResumeError{ThreadID: threadID}
	default:
		return nil, &InvalidResumeStateError{ThreadID: threadID, Status: cp.Status}
	}

	g, ok := e.Graph(cp.GraphName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, cp.GraphName)
	}
	state, err := g.schema.Decode(cp.State)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, err)
	}
	var cfg Config
	if len(cp.Config) > 0 {
		if err := json.Unmarshal(cp.Config, &cfg); err != nil {
			return nil, fmt.Errorf("thread %s: decode config: %w", threadID, err)
		}
	}
	cfg.ThreadID = threadID
	if err := validateResume(g, cp.PendingNode, cp.Child, input); err != nil {
		return nil, err
	}

	prior, err := decodeUI(cp.UI)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, err)
	}

	pending, completed, child, step := cp.PendingNode, cp.Completed, cp.Child, cp.StepCount
	rc := e.newRun(threadID, g.name, cfg, prior)
	ctx = rc.attach(ctx)

	if err := e.write(ctx, rc, g, cp, cp.Version, func(cp *store.Checkpoint) error {
		cp.Status = StatusRunning
		cp.Interrupt = nil
		return nil
	}); err != nil {
		return nil, err
	}

	e.cfg.logger.Info("run resumed", "thread_id", threadID, "graph", g.name, "node", pending)
	e.cfg.emitter.Emit(emit.Event{ThreadID: threadID, Graph: g.name, Step: step, NodeID: pending, Msg: emit.MsgResume})

	out := e.continueFrom(ctx, rc, g, frameState{
		state:     state,
		pending:   pending,
		completed: completed,
		child:     child,
		step:      step,
	}, input, e.checkpointer(ctx, rc, g, cp))
	return e.finish(ctx, rc, g, cp, out)
}

// Checkpoint returns the stored record of a thread.
func (e *Engine) Checkpoint(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	return e.store.Load(ctx, threadID)
}

// ThreadState decodes the stored state of a thread using its registered graph.
func (e *Engine) ThreadState(ctx context.Context, threadID string) (State, *store.Checkpoint, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return State{}, nil, err
	}
	g, ok := e.Graph(cp.GraphName)
	if !ok {
		return State{}, cp, fmt.Errorf("%w: %s", ErrUnknownGraph, cp.GraphName)
	}
	st, err := g.schema.Decode(cp.State)
	return st, cp, err
}

// Discard deletes a thread's checkpoint, abandoning any pending interrupt.
func (e *Engine) Discard(ctx context.Context, threadID string) error {
	if err := e.store.Delete(ctx, threadID); err != nil {
		return err
	}
	e.cfg.logger.Info("thread discarded", "thread_id", threadID)
	return nil
}

// Threads lists stored checkpoints.
func (e *Engine) Threads(ctx context.Context, opts store.ListOptions) ([]*store.Checkpoint, error) {
	return e.store.List(ctx, opts)
}

// runContext is shared by every node invocation of one run, including
// invocations inside embedded graphs.
type runContext struct {
	engine   *Engine
	threadID string
	cfg      Config
	stream   *ui.Stream
}

type runKey struct{}

func (e *Engine) newRun(threadID, graphName string, cfg Config, prior []ui.Event) *runContext {
	var listener ui.Listener
	if fn := e.cfg.uiListener; fn != nil {
		listener = func(ev ui.Event) { fn(threadID, ev) }
	}
	return &runContext{engine: e, threadID: threadID, cfg: cfg, stream: ui.NewStream(prior, listener)}
}

func (rc *runContext) attach(ctx context.Context) context.Context {
	return ui.WithStream(context.WithValue(ctx, runKey{}, rc), rc.stream)
}

func runFromContext(ctx context.Context) *runContext {
	rc, _ := ctx.Value(runKey{}).(*runContext)
	return rc
}

// position is where a graph's loop continues from.
type position struct {
	state  State
	active []string
	step   int
}

// frameState is a paused graph waiting for input at pending.
type frameState struct {
	state     State
	pending   string
	completed []string
	child     *store.Frame
	step      int
}

// outcome is how one graph's loop stopped.
type outcome struct {
	status     Status
	state      State
	step       int
	pending    string
	completed  []string
	interrupt  *Interrupt
	child      *store.Frame
	failedNode string
	err        error
}

// stepHook observes the position after each completed step. Returning an
// error fails the run.
type stepHook func(pos position) error

type nodeRun struct {
	spec *nodeSpec
	res  NodeResult
}

// loop drives g from pos until End, an interrupt, a failure, or the step budget.
func (e *Engine) loop(ctx context.Context, rc *runContext, g *CompiledGraph, pos position, onStep stepHook) outcome {
	state, active, step := pos.state, pos.active, pos.step
	fail := func(node string, err error) outcome {
		return outcome{status: StatusFailed, state: state, step: step, failedNode: node, err: err}
	}

	for {
		active = slices.DeleteFunc(slices.Clone(active), func(n string) bool { return n == End })
		if len(active) == 0 {
			return outcome{status: StatusCompleted, state: state, step: step}
		}
		if err := ctx.Err(); err != nil {
			return fail("", err)
		}
		if step >= e.cfg.maxSteps {
			return fail("", &StepBudgetExceededError{Graph: g.name, MaxSteps: e.cfg.maxSteps, Active: active})
		}
		step++

		runs := e.runStep(ctx, rc, g, state, active, step)

		var paused *nodeRun
		completed := make([]string, 0, len(runs))
		for i := range runs {
			r := &runs[i]
			if r.res.Err != nil {
				return fail(r.spec.name, &NodeExecutionError{Node: r.spec.name, Step: step, Cause: r.res.Err})
			}
			next, err := g.schema.Merge(state, r.res.Update)
			if err != nil {
				var sv *SchemaViolationError
				if errors.As(err, &sv) {
					sv.Node = r.spec.name
				}
				return fail(r.spec.name, err)
			}
			state = next
			if r.res.Interrupt == nil {
				completed = append(completed, r.spec.name)
				continue
			}
			if paused != nil {
				return fail(r.spec.name, fmt.Errorf("%w: %s and %s", ErrMultipleInterrupts, paused.spec.name, r.spec.name))
			}
			paused = r
		}

		if paused != nil {
			intr := *paused.res.Interrupt
			if intr.Node == "" {
				intr.Graph, intr.Node = g.name, paused.spec.name
			}
			return outcome{
				status:    StatusInterrupted,
				state:     state,
				step:      step,
				pending:   paused.spec.name,
				completed: completed,
				interrupt: &intr,
				child:     paused.res.suspended,
			}
		}

		next, err := g.resolve(completed, state, rc.cfg)
		if err != nil {
			var re *RoutingError
			if errors.As(err, &re) {
				return fail(re.Node, err)
			}
			return fail("", err)
		}
		active = next

		if onStep != nil {
			if err := onStep(position{state: state, active: active, step: step}); err != nil {
				return fail("", err)
			}
		}
	}
}

// continueFrom resumes a paused graph with input and drives it onward.
func (e *Engine) continueFrom(ctx context.Context, rc *runContext, g *CompiledGraph, fs frameState, input any, onStep stepHook) outcome {
	state, step := fs.state, fs.step
	fail := func(node string, err error) outcome {
		return outcome{status: StatusFailed, state: state, step: step, failedNode: node, err: err}
	}

	spec, ok := g.byName[fs.pending]
	if !ok {
		return fail(fs.pending, fmt.Errorf("graph %s has no node %s", g.name, fs.pending))
	}

	var res NodeResult
	if sub, ok := spec.node.(*subgraphNode); ok && fs.child != nil {
		res = sub.resume(ctx, rc, *fs.child, input)
	} else {
		u, err := resumeUpdate(g.schema, spec, input)
		if err != nil {
			return fail(spec.name, err)
		}
		res = NodeResult{Update: u}
	}
	if res.Err != nil {
		return fail(spec.name, &NodeExecutionError{Node: spec.name, Step: step, Cause: res.Err})
	}
	next, err := g.schema.Merge(state, res.Update)
	if err != nil {
		var sv *SchemaViolationError
		if errors.As(err, &sv) {
			sv.Node = spec.name
		}
		return fail(spec.name, err)
	}
	state = next

	if res.Interrupt != nil {
		return outcome{
			status:    StatusInterrupted,
			state:     state,
			step:      step,
			pending:   spec.name,
			completed: fs.completed,
			interrupt: res.Interrupt,
			child:     res.suspended,
		}
	}

	active, err := g.resolve(slices.Concat(fs.completed, []string{spec.name}), state, rc.cfg)
	if err != nil {
		return fail(spec.name, err)
	}
	if onStep != nil {
		if err := onStep(position{state: state, active: active, step: step}); err != nil {
			return fail("", err)
		}
	}
	return e.loop(ctx, rc, g, position{state: state, active: active, step: step}, onStep)
}

// runStep invokes every active node concurrently against the same state and
// returns their results in declaration order.
func (e *Engine) runStep(ctx context.Context, rc *runContext, g *CompiledGraph, state State, active []string, step int) []nodeRun {
	runs := make([]nodeRun, len(active))
	var eg errgroup.Group
	if e.cfg.maxConcurrent > 0 {
		eg.SetLimit(e.cfg.maxConcurrent)
	}
	for i, name := range active {
		spec := g.byName[name]
		runs[i].spec = spec
		eg.Go(func() error {
			runs[i].res = e.invoke(ctx, rc, g, spec, state, step)
			return nil
		})
	}
	_ = eg.Wait()
	return runs
}

func (e *Engine) invoke(ctx context.Context, rc *runContext, g *CompiledGraph, spec *nodeSpec, state State, step int) NodeResult {
	ev := emit.Event{ThreadID: rc.threadID, Graph: g.name, Step: step, NodeID: spec.name}
	e.cfg.emitter.Emit(with(ev, emit.MsgNodeStart, nil))
	e.cfg.metrics.IncInflight(1)
	start := time.Now()

	res := executeNode(ctx, spec, state, rc.cfg, e.cfg.defaultNodeTimeout)

	elapsed := time.Since(start)
	e.cfg.metrics.IncInflight(-1)
	meta := map[string]any{"duration_ms": elapsed.Milliseconds()}
	switch {
	case res.Err != nil:
		meta["error"] = res.Err.Error()
		e.cfg.metrics.RecordStepLatency(g.name, spec.name, elapsed, "error")
		e.cfg.emitter.Emit(with(ev, emit.MsgNodeError, meta))
		e.cfg.logger.Warn("node failed", "thread_id", rc.threadID, "graph", g.name, "node", spec.name, "step", step, "err", res.Err)
	case res.Interrupt != nil:
		e.cfg.metrics.RecordStepLatency(g.name, spec.name, elapsed, "interrupt")
		e.cfg.metrics.RecordInterrupt(g.name, spec.name)
		e.cfg.emitter.Emit(with(ev, emit.MsgInterrupt, meta))
	default:
		e.cfg.metrics.RecordStepLatency(g.name, spec.name, elapsed, "success")
		e.cfg.emitter.Emit(with(ev, emit.MsgNodeEnd, meta))
	}
	e.cfg.logger.Debug("node finished", "thread_id", rc.threadID, "graph", g.name, "node", spec.name, "step", step, "duration", elapsed)
	return res
}

func with(ev emit.Event, msg string, meta map[string]any) emit.Event {
	ev.Msg = msg
	ev.Meta = meta
	return ev
}

// checkpointer persists the RUNNING position after every top-level step.
func (e *Engine) checkpointer(ctx context.Context, rc *runContext, g *CompiledGraph, cp *store.Checkpoint) stepHook {
	return func(pos position) error {
		return e.write(ctx, rc, g, cp, cp.Version, func(cp *store.Checkpoint) error {
			cp.StepCount = pos.step
			cp.Active = pos.active
			return fillCheckpoint(cp, g, pos.state, rc.cfg, rc.stream)
		})
	}
}

// write applies mutate to a copy of cp and stores it if the thread is still
// at version expected. cp is updated only when the write succeeds.
func (e *Engine) write(ctx context.Context, rc *runContext, g *CompiledGraph, cp *store.Checkpoint, expected int64, mutate func(*store.Checkpoint) error) error {
	next := *cp
	if err := mutate(&next); err != nil {
		return err
	}
	if err := e.store.CompareAndSwap(ctx, &next, expected); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			e.cfg.metrics.RecordResumeConflict(g.name)
			return &ConcurrentResumeError{ThreadID: rc.threadID}
		}
		return fmt.Errorf("save checkpoint for thread %s: %w", rc.threadID, err)
	}
	*cp = next
	e.cfg.emitter.Emit(emit.Event{
		ThreadID: rc.threadID,
		Graph:    g.name,
		Step:     cp.StepCount,
		Msg:      emit.MsgCheckpointSaved,
		Meta:     map[string]any{"version": cp.Version, "status": string(cp.Status)},
	})
	return nil
}

// finish persists the final status of a run segment and builds its result.
func (e *Engine) finish(ctx context.Context, rc *runContext, g *CompiledGraph, cp *store.Checkpoint, out outcome) (*RunResult, error) {
	// Another caller owns the thread; leave its record alone.
	owned := !errors.Is(out.err, ErrConcurrentResume)

	if owned {
		wctx := context.WithoutCancel(ctx)
		err := e.write(wctx, rc, g, cp, cp.Version, func(cp *store.Checkpoint) error {
			cp.Status = out.status
			cp.StepCount = out.step
			cp.Active = nil
			cp.PendingNode = out.pending
			cp.Completed = out.completed
			cp.Child = out.child
			cp.Interrupt = nil
			cp.Failure = nil
			if out.interrupt != nil {
				raw, err := json.Marshal(out.interrupt)
				if err != nil {
					return fmt.Errorf("encode interrupt: %w", err)
				}
				cp.Interrupt = raw
			}
			if out.status == StatusFailed {
				cp.Failure = &store.Failure{Node: out.failedNode, Step: out.step, Cause: out.err.Error()}
			}
			return fillCheckpoint(cp, g, out.state, rc.cfg, rc.stream)
		})
		if err != nil && out.status != StatusFailed {
			out = outcome{status: StatusFailed, state: out.state, step: out.step, err: err}
		}
	}

	result := &RunResult{
		ThreadID:   rc.threadID,
		Graph:      g.name,
		Status:     out.status,
		State:      out.state,
		Interrupt:  out.interrupt,
		Steps:      out.step,
		UI:         rc.stream.Events(),
		Checkpoint: cp,
		Err:        out.err,
	}
	e.cfg.metrics.RecordRun(g.name, out.status)

	ev := emit.Event{ThreadID: rc.threadID, Graph: g.name, Step: out.step, NodeID: out.failedNode}
	switch out.status {
	case StatusCompleted:
		e.cfg.emitter.Emit(with(ev, emit.MsgRunComplete, map[string]any{"status": string(out.status)}))
		e.cfg.logger.Info("run completed", "thread_id", rc.threadID, "graph", g.name, "steps", out.step)
	case StatusInterrupted:
		e.cfg.logger.Info("run interrupted", "thread_id", rc.threadID, "graph", g.name, "node", out.pending, "steps", out.step)
	case StatusFailed:
		e.cfg.emitter.Emit(with(ev, emit.MsgRunFailed, map[string]any{"status": string(out.status), "error": out.err.Error()}))
		e.cfg.logger.Warn("run failed", "thread_id", rc.threadID, "graph", g.name, "node", out.failedNode, "steps", out.step, "err", out.err)
	}
	return result, out.err
}

func fillCheckpoint(cp *store.Checkpoint, g *CompiledGraph, state State, cfg Config, stream *ui.Stream) error {
	raw, err := g.schema.Encode(state)
	if err != nil {
		return err
	}
	cp.State = raw
	if cp.Config, err = json.Marshal(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if events := stream.Events(); len(events) > 0 {
		if cp.UI, err = json.Marshal(events); err != nil {
			return fmt.Errorf("encode ui events: %w", err)
		}
	}
	return nil
}

func decodeUI(raw json.RawMessage) ([]ui.Event, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var events []ui.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode ui events: %w", err)
	}
	return events, nil
}

// resumeUpdate converts human input into an update of the node's resume field.
func resumeUpdate(schema *Schema, spec *nodeSpec, input any) (Update, error) {
	if spec.resumeField == "" {
		if input == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("node %s: %w", spec.name, ErrNoResumeField)
	}
	f, _ := schema.Field(spec.resumeField)
	v, err := f.coerce(input)
	if err != nil {
		return nil, &SchemaViolationError{Schema: schema.name, Node: spec.name, Field: spec.resumeField, Reason: err.Error()}
	}
	return Update{spec.resumeField: v}, nil
}

// validateResume checks that input is acceptable to the innermost paused node
// before any state is modified.
func validateResume(g *CompiledGraph, pending string, child *store.Frame, input any) error {
	spec, ok := g.byName[pending]
	if !ok {
		return fmt.Errorf("graph %s has no node %s", g.name, pending)
	}
	if sub, ok := spec.node.(*subgraphNode); ok && child != nil {
		return validateResume(sub.child, child.PendingNode, child.Child, input)
	}
	_, err := resumeUpdate(g.schema, spec, input)
	return err
}
