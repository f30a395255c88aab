package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/langgraph-agents/agents"
	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/internal/app"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ThreadID        string
	FullWriteAccess bool
	Input           string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <agent> [message...]",
		Short: "Send a message to an agent",
		Long: `Run an agent graph with a user message. Reusing --thread continues the
conversation of a completed thread.`,
		Example: `  agentctl run agent "What's the price of AAPL?"
  agentctl run email_agent --thread mail-1 "Email bob@example.com about lunch"
  agentctl run writer_agent --input '{"context": {"writer": {"selected": "roses"}}}' "Write a poem"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App, out *Formatter) error {
				return runAgent(cmd, a, out, opts, args[0], strings.Join(args[1:], " "))
			})
		},
	}

	cmd.Flags().StringVarP(&opts.ThreadID, "thread", "t", "", "thread id (generated when empty)")
	cmd.Flags().BoolVar(&opts.FullWriteAccess, "full-write-access", false, "let agents apply changes without review")
	cmd.Flags().StringVar(&opts.Input, "input", "", "JSON object of additional state fields")

	return cmd
}

func runAgent(cmd *cobra.Command, a *app.App, out *Formatter, opts *RunOptions, name, message string) error {
	g, ok := a.Engine.Graph(name)
	if !ok {
		return fmt.Errorf("unknown agent %q (see 'agentctl agents')", name)
	}
	input, err := g.Schema().DecodeUpdate(json.RawMessage(opts.Input))
	if err != nil {
		return err
	}
	if message != "" {
		input = graph.Updates(input, agents.Input(message))
	}
	cfg := graph.Config{
		ThreadID:    opts.ThreadID,
		Permissions: graph.Permissions{FullWriteAccess: opts.FullWriteAccess},
	}
	res, err := a.Engine.Invoke(cmd.Context(), name, input, cfg)
	return report(out, res, err)
}

// report prints a run that started, then returns its error.
func report(out *Formatter, res *graph.RunResult, err error) error {
	if res == nil {
		return err
	}
	if perr := out.Run(runView(res)); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	Type    string
	Content string
	Raw     string
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume <thread>",
		Short: "Answer a thread that is waiting for input",
		Example: `  agentctl resume mail-1 --type accept
  agentctl resume mail-1 --type edit --content "New body"
  agentctl resume mail-1 --json '{"type": "response", "content": "More formal"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := opts.resumeInput()
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App, out *Formatter) error {
				res, err := a.Engine.Resume(cmd.Context(), args[0], input)
				return report(out, res, err)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "review answer: accept, edit, response or ignore")
	cmd.Flags().StringVar(&opts.Content, "content", "", "text for edit and response answers")
	cmd.Flags().StringVar(&opts.Raw, "json", "", "raw JSON resume value")
	cmd.MarkFlagsMutuallyExclusive("type", "json")
	cmd.MarkFlagsMutuallyExclusive("content", "json")

	return cmd
}

func (o *ResumeOptions) resumeInput() (any, error) {
	switch {
	case o.Raw != "":
		if !json.Valid([]byte(o.Raw)) {
			return nil, errors.New("--json: invalid JSON")
		}
		return json.RawMessage(o.Raw), nil
	case o.Type != "":
		return &agents.HumanResponse{Type: o.Type, Content: o.Content}, nil
	case o.Content != "":
		return nil, errors.New("--content needs --type")
	}
	return nil, nil
}
