package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/langgraph-agents/agents"
	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/model"
	"github.com/dshills/langgraph-agents/graph/store"
	"github.com/dshills/langgraph-agents/graph/ui"
)

// Formatter writes command results as text or JSON.
type Formatter struct {
	Writer io.Writer
	Format string
}

// NewFormatter creates a formatter for format ("text" or "json").
func NewFormatter(w io.Writer, format string) *Formatter {
	return &Formatter{Writer: w, Format: format}
}

// RunView is the JSON form of a run or a stored thread.
type RunView struct {
	ThreadID  string           `json:"thread_id"`
	Graph     string           `json:"graph"`
	Status    graph.Status     `json:"status"`
	Steps     int              `json:"steps"`
	State     map[string]any   `json:"state,omitempty"`
	Interrupt *graph.Interrupt `json:"interrupt,omitempty"`
	UI        []ui.Event       `json:"ui,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func runView(res *graph.RunResult) RunView {
	v := RunView{
		ThreadID:  res.ThreadID,
		Graph:     res.Graph,
		Status:    res.Status,
		Steps:     res.Steps,
		State:     res.State.Map(),
		Interrupt: res.Interrupt,
		UI:        res.UI,
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

// Run prints a run result. Text output shows the newest assistant reply,
// the reconciled UI components and any pending question.
func (f *Formatter) Run(v RunView) error {
	if f.Format == "json" {
		return f.json(v)
	}
	fmt.Fprintf(f.Writer, "thread %s (%s): %s after %d steps\n", v.ThreadID, v.Graph, v.Status, v.Steps)
	if msg, ok := lastReply(v.State); ok {
		fmt.Fprintf(f.Writer, "\n%s\n", msg.Content)
	}
	for _, ev := range ui.Reconcile(v.UI) {
		props, _ := json.Marshal(ev.Props)
		fmt.Fprintf(f.Writer, "\n[ui %s %s] %s\n", ev.Name, ev.ID, props)
	}
	if v.Interrupt != nil {
		value, _ := json.MarshalIndent(v.Interrupt.Value, "", "  ")
		fmt.Fprintf(f.Writer, "\nwaiting for input at %s/%s:\n%s\n", v.Interrupt.Graph, v.Interrupt.Node, value)
	}
	if v.Error != "" {
		fmt.Fprintf(f.Writer, "\nerror: %s\n", v.Error)
	}
	return nil
}

// Threads prints stored checkpoints.
func (f *Formatter) Threads(cps []*store.Checkpoint) error {
	if f.Format == "json" {
		return f.json(cps)
	}
	if len(cps) == 0 {
		fmt.Fprintln(f.Writer, "no threads")
		return nil
	}
	for _, cp := range cps {
		fmt.Fprintf(f.Writer, "%-36s  %-14s  %-11s  v%d  %s\n",
			cp.ThreadID, cp.GraphName, cp.Status, cp.Version, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Lines prints one value per line, or a JSON array.
func (f *Formatter) Lines(values []string) error {
	if f.Format == "json" {
		return f.json(values)
	}
	_, err := fmt.Fprintln(f.Writer, strings.Join(values, "\n"))
	return err
}

func (f *Formatter) json(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func lastReply(state map[string]any) (model.Message, bool) {
	msgs, ok := state[agents.Messages.Name()].([]model.Message)
	if !ok {
		return model.Message{}, false
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant && msgs[i].Content != "" {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}

// decodeStored fills the parts of v that a checkpoint keeps as raw JSON.
func decodeStored(cp *store.Checkpoint, v *RunView) error {
	if len(cp.UI) > 0 {
		if err := json.Unmarshal(cp.UI, &v.UI); err != nil {
			return fmt.Errorf("decode ui events: %w", err)
		}
	}
	if len(cp.Interrupt) > 0 {
		var in graph.Interrupt
		if err := json.Unmarshal(cp.Interrupt, &in); err != nil {
			return fmt.Errorf("decode interrupt: %w", err)
		}
		v.Interrupt = &in
	}
	if cp.Failure != nil {
		v.Error = cp.Failure.Cause
	}
	return nil
}
