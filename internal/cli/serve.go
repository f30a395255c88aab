package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/langgraph-agents/internal/app"
	"github.com/dshills/langgraph-agents/internal/server"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agents over HTTP",
		Long: `Start the HTTP API: POST /agents/{name}/runs, POST /threads/{id}/resume,
GET and DELETE /threads/{id}, GET /threads/{id}/events (server-sent UI
events), GET /metrics and GET /healthz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(a *app.App, _ *Formatter) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return serve(ctx, a, addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// serve runs the HTTP server until ctx is done, then drains requests.
func serve(ctx context.Context, a *app.App, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", addr, "store", a.Config.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("graceful shutdown incomplete", "error", err)
		return srv.Close()
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
