package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/langgraph-agents/graph"
	"github.com/dshills/langgraph-agents/graph/store"
	"github.com/dshills/langgraph-agents/internal/app"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread>",
		Short: "Show a thread's stored state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(a *app.App, out *Formatter) error {
				st, cp, err := a.Engine.ThreadState(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				res := &graph.RunResult{
					ThreadID:   cp.ThreadID,
					Graph:      cp.GraphName,
					Status:     cp.Status,
					State:      st,
					Steps:      cp.StepCount,
					Checkpoint: cp,
				}
				v := runView(res)
				if err := decodeStored(cp, &v); err != nil {
					return err
				}
				return out.Run(v)
			})
		},
	}
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <thread>",
		Short: "Delete a thread, abandoning any pending question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(a *app.App, out *Formatter) error {
				if err := a.Engine.Discard(cmd.Context(), args[0]); err != nil {
					return err
				}
				if out.Format == "json" {
					return out.json(map[string]string{"discarded": args[0]})
				}
				_, err := fmt.Fprintf(out.Writer, "discarded %s\n", args[0])
				return err
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Status string
	Graph  string
	Limit  int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored threads, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App, out *Formatter) error {
				cps, err := a.Engine.Threads(cmd.Context(), store.ListOptions{
					Status: graph.Status(opts.Status),
					Graph:  opts.Graph,
					Limit:  opts.Limit,
				})
				if err != nil {
					return err
				}
				return out.Threads(cps)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (RUNNING, INTERRUPTED, COMPLETED, FAILED)")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "filter by agent")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of threads (0 for all)")

	return cmd
}

// NewAgentsCommand creates the agents command.
func NewAgentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the available agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(a *app.App, out *Formatter) error {
				return out.Lines(a.Engine.Graphs())
			})
		},
	}
}
