// Package cli implements the agentctl command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/langgraph-agents/internal/app"
	"github.com/dshills/langgraph-agents/internal/config"
	"github.com/dshills/langgraph-agents/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Store      string
	LogLevel   string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the agentctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "agentctl",
		Short: "Run and inspect conversational agent graphs",
		Long: `agentctl runs the agent graphs against a checkpoint store.
Threads paused for human input can be resumed later, from this or another
process sharing the same store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "checkpoint store locator (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDiscardCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAgentsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// load resolves the configuration with flag overrides applied.
func (o *RootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Store != "" {
		cfg.Store = o.Store
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	return cfg, cfg.Validate()
}

// open builds the application. Logs go to the command's stderr.
func (o *RootOptions) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)
	return app.New(cfg, logger)
}

// withApp runs fn against a freshly opened App and closes it afterwards.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(a *app.App, out *Formatter) error) error {
	a, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(cmd.Context()); cerr != nil {
			a.Logger.Warn("close", "error", cerr)
		}
	}()
	return fn(a, NewFormatter(cmd.OutOrStdout(), o.Format))
}
