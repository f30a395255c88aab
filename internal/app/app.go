// Package app wires configuration into a running engine: checkpoint store,
// chat models, observability and the registered agents.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/dshills/langgraph-agents/agents"
	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/emit"
	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/model/anthropic"
	"github.com/dshills/langgraph-agents/graph/model/google"
	"github.com/dshills/langgraph-agents/graph/model/openai"
	"github.com/dshills/langgraph-agents/graph/store"
	"github.com/dshills/langgraph-agents/graph/ui"
	"github.com/dshills/langgraph-agents/internal/config"
)

// App is a configured engine and the resources it owns.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    store.Store
	Engine   *graph.Engine
	Registry *prometheus.Registry

	// Events keeps every engine event per thread for inspection.
	Events *emit.BufferedEmitter

	// UI streams pushed UI events to live subscribers.
	UI *Hub

	tracer *sdktrace.TracerProvider
}

// New builds an App from cfg. The caller must Close it.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Registry: prometheus.NewRegistry(),
		Events:   emit.NewBufferedEmitter(),
		UI:       NewHub(logger),
	}
	if err := a.build(); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	emitters := []emit.Emitter{emit.NewLogEmitter(a.Logger), a.Events}
	if a.Config.Tracing.Enabled {
		res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(a.Config.Tracing.ServiceName))
		a.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSyncer(&logExporter{logger: a.Logger}),
		)
		emitters = append(emitters, emit.NewOTelEmitter(a.tracer.Tracer("github.com/dshills/langgraph-agents")))
	}

	opts := []graph.Option{
		graph.WithMaxSteps(a.Config.MaxSteps),
		graph.WithDefaultNodeTimeout(a.Config.NodeTimeout),
		graph.WithEmitter(emit.Multi(emitters...)),
		graph.WithMetrics(graph.NewPrometheusMetrics(a.Registry)),
		graph.WithLogger(a.Logger),
		graph.WithUIListener(func(threadID string, ev ui.Event) {
			a.Logger.Debug("ui event", "thread_id", threadID, "id", ev.ID, "name", ev.Name)
			a.UI.Publish(threadID, ev)
		}),
	}
	engine, err := graph.New(a.Store, opts...)
	if err != nil {
		return err
	}

	deps, err := a.agentDeps()
	if err != nil {
		return err
	}
	if err := agents.Register(engine, deps); err != nil {
		return fmt.Errorf("register agents: %w", err)
	}
	a.Engine = engine
	return nil
}

func (a *App) agentDeps() (agents.Deps, error) {
	m, err := NewModel(a.Config, a.Config.Provider, a.Config.Model)
	if err != nil {
		return agents.Deps{}, err
	}
	deps := agents.Deps{
		Model:      m,
		Latency:    a.Config.Latency,
		Retries:    a.Config.Retries,
		RetryDelay: a.Config.RetryDelay,
		Logger:     a.Logger,
	}
	for name, mc := range a.Config.Agents {
		override, err := NewModel(a.Config, mc.Provider, mc.Model)
		if err != nil {
			return agents.Deps{}, fmt.Errorf("agent %s: %w", name, err)
		}
		if deps.Models == nil {
			deps.Models = make(map[string]model.ChatModel)
		}
		deps.Models[name] = override
	}
	return deps, nil
}

// NewModel creates the chat model for provider. The mock provider needs no
// credentials and answers with DemoModel.
func NewModel(cfg config.Config, provider, modelName string) (model.ChatModel, error) {
	key := cfg.APIKey(provider)
	if provider != config.ProviderMock && key == "" {
		return nil, fmt.Errorf("provider %s: missing API key", provider)
	}
	switch provider {
	case config.ProviderOpenAI:
		return openai.NewChatModel(key, modelName), nil
	case config.ProviderAnthropic:
		return anthropic.NewChatModel(key, modelName), nil
	case config.ProviderGoogle:
		return google.NewChatModel(key, modelName), nil
	case config.ProviderMock:
		return DemoModel(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// Close flushes traces and releases the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
