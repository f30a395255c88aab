// Package server exposes the agents over HTTP: start and resume runs,
// inspect and discard threads, follow a thread's UI events and scrape
// metrics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/langgraph-agents/agents"
	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/store"
	"github.com/dshills/langgraph-agents/graph/ui"
	"github.com/dshills/langgraph-agents/internal/app"
)

// Server handles the HTTP API of one App.
type Server struct {
	app    *app.App
	logger *slog.Logger
}

// NewHandler returns the router for a.
func NewHandler(a *app.App) http.Handler {
	s := &Server{app: a, logger: a.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	r.Get("/agents", s.listAgents)
	r.Post("/agents/{name}/runs", s.startRun)

	r.Route("/threads", func(r chi.Router) {
		r.Get("/", s.listThreads)
		r.Get("/{id}", s.getThread)
		r.Delete("/{id}", s.discardThread)
		r.Post("/{id}/resume", s.resumeThread)
		r.Get("/{id}/events", s.streamEvents)
	})
	return r
}

// RunRequest starts a run. Message is a shortcut for a single user message;
// Input sets schema fields directly. Config uses the {"configurable": {...}}
// shape.
type RunRequest struct {
	Message string          `json:"message,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Config  map[string]any  `json:"config,omitempty"`
}

// ResumeRequest answers a pending interrupt.
type ResumeRequest struct {
	Resume json.RawMessage `json:"resume"`
}

// ThreadView is the JSON shape of a run result or stored thread.
type ThreadView struct {
	ThreadID  string           `json:"thread_id"`
	Graph     string           `json:"graph"`
	Status    graph.Status     `json:"status"`
	State     map[string]any   `json:"state,omitempty"`
	Interrupt *graph.Interrupt `json:"interrupt,omitempty"`
	UI        []ui.Event       `json:"ui,omitempty"`
	Steps     int              `json:"steps"`
	Error     string           `json:"error,omitempty"`
	Version   int64            `json:"version,omitempty"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.app.Engine.Graphs()})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	g, ok := s.app.Engine.Graph(name)
	if !ok {
		s.fail(w, fmt.Errorf("%w: %s", graph.ErrUnknownGraph, name))
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg, err := graph.ParseConfig(req.Config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input, err := g.Schema().DecodeUpdate(req.Input)
	if err != nil {
		s.fail(w, err)
		return
	}
	if req.Message != "" {
		input = graph.Updates(input, agents.Input(req.Message))
	}

	res, err := s.app.Engine.Invoke(r.Context(), name, input, cfg)
	s.respondRun(w, res, err)
}

func (s *Server) resumeThread(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var input any
	if len(req.Resume) > 0 && string(req.Resume) != "null" {
		input = req.Resume
	}
	res, err := s.app.Engine.Resume(r.Context(), chi.URLParam(r, "id"), input)
	s.respondRun(w, res, err)
}

// respondRun reports a run that started as 200 even when it failed; the
// failure is in the body.
func (s *Server) respondRun(w http.ResponseWriter, res *graph.RunResult, err error) {
	if res == nil {
		s.fail(w, err)
		return
	}
	view := ThreadView{
		ThreadID:  res.ThreadID,
		Graph:     res.Graph,
		Status:    res.Status,
		State:     res.State.Map(),
		Interrupt: res.Interrupt,
		UI:        res.UI,
		Steps:     res.Steps,
	}
	if res.Err != nil {
		view.Error = res.Err.Error()
	}
	if res.Checkpoint != nil {
		view.Version = res.Checkpoint.Version
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	st, cp, err := s.app.Engine.ThreadState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	view := checkpointView(cp)
	view.State = st.Map()
	if len(cp.UI) > 0 {
		if err := json.Unmarshal(cp.UI, &view.UI); err != nil {
			s.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) discardThread(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Engine.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{Status: graph.Status(q.Get("status")), Graph: q.Get("graph")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	cps, err := s.app.Engine.Threads(r.Context(), opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	views := make([]ThreadView, len(cps))
	for i, cp := range cps {
		views[i] = checkpointView(cp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": views})
}

// streamEvents follows a thread's UI events as server-sent events until the
// client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	threadID := chi.URLParam(r, "id")
	events, cancel := s.app.UI.Subscribe(threadID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("encode ui event", "thread_id", threadID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: ui\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func checkpointView(cp *store.Checkpoint) ThreadView {
	updated := cp.UpdatedAt
	view := ThreadView{
		ThreadID:  cp.ThreadID,
		Graph:     cp.GraphName,
		Status:    cp.Status,
		Steps:     cp.StepCount,
		Version:   cp.Version,
		UpdatedAt: &updated,
	}
	if len(cp.Interrupt) > 0 {
		var in graph.Interrupt
		if err := json.Unmarshal(cp.Interrupt, &in); err == nil {
			view.Interrupt = &in
		}
	}
	if cp.Failure != nil {
		view.Error = cp.Failure.Cause
	}
	return view
}

// fail maps engine errors to HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, graph.ErrUnknownGraph):
		status = http.StatusNotFound
	case errors.Is(err, graph.ErrThreadInterrupted),
		errors.Is(err, graph.ErrConcurrentResume),
		errors.Is(err, graph.ErrInvalidResumeState):
		status = http.StatusConflict
	case errors.Is(err, graph.ErrSchemaViolation), errors.Is(err, graph.ErrNoResumeField):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
