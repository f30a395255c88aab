package graph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/langgraph-agents/graph/emit"
	"github.com/dshills/langgraph-agents/graph/ui"
)

// DefaultMaxSteps is the step budget used when WithMaxSteps is not given.
const DefaultMaxSteps = 25

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := graph.New(st,
//	    graph.WithMaxSteps(50),
//	    graph.WithEmitter(emit.NewLogEmitter(logger)),
//	    graph.WithDefaultNodeTimeout(30*time.Second),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	maxSteps           int
	maxConcurrent      int
	defaultNodeTimeout time.Duration
	emitter            emit.Emitter
	metrics            *PrometheusMetrics
	logger             *slog.Logger
	uiListener         func(threadID string, ev ui.Event)
}

func defaultConfig() engineConfig {
	return engineConfig{
		maxSteps: DefaultMaxSteps,
		emitter:  emit.NewNullEmitter(),
		logger:   slog.New(slog.DiscardHandler),
	}
}

// WithMaxSteps bounds the number of steps a run may take before it fails
// with StepBudgetExceeded. Each step executes the whole active node set once.
//
// Default: 25. The bound applies per embedded graph as well: an embedded
// graph gets its own budget of n steps per invocation.
//
// Loops (planner → executor → planner) are supported; choose n as the
// number of nodes on the loop times the iterations you are willing to allow.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return &EngineError{Message: fmt.Sprintf("max steps must be >= 1, got %d", n), Code: "INVALID_OPTION"}
		}
		cfg.maxSteps = n
		return nil
	}
}

// WithMaxConcurrent caps how many nodes of one step execute at the same time.
// Zero (the default) runs the whole active set at once.
func WithMaxConcurrent(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return &EngineError{Message: fmt.Sprintf("max concurrent must be >= 0, got %d", n), Code: "INVALID_OPTION"}
		}
		cfg.maxConcurrent = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the deadline applied to every node invocation
// that has no WithTimeout of its own. Zero means no deadline.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: fmt.Sprintf("node timeout must be >= 0, got %v", d), Code: "INVALID_OPTION"}
		}
		cfg.defaultNodeTimeout = d
		return nil
	}
}

// WithEmitter sends observability events to e.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if e == nil {
			return &EngineError{Message: "emitter must not be nil", Code: "INVALID_OPTION"}
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics records engine metrics into m.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithLogger sets the engine's structured logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if l == nil {
			return &EngineError{Message: "logger must not be nil", Code: "INVALID_OPTION"}
		}
		cfg.logger = l
		return nil
	}
}

// WithUIListener observes every UI event as it is pushed, for streaming to
// a client while the run is still in progress.
func WithUIListener(fn func(threadID string, ev ui.Event)) Option {
	return func(cfg *engineConfig) error {
		cfg.uiListener = fn
		return nil
	}
}
