package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/internal/server"
)

const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command that runs the preview API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve SPEC[:SCENE_ID]",
		Short: "Serve the resolved timeline of a spec over HTTP",
		Long: `Serve a read-only preview API for a spec.

The spec is reloaded on every request. Endpoints: /healthz, /timeline,
/graph and /cache. Pass ?scene=ID to /timeline or /graph to narrow the view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := c.pipelineOptions(args[0])
			if err != nil {
				return err
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := &server.Server{Runner: runner, Cache: runner.Cache, Options: opts, Logger: c.Logger}
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			printInfo("Serving %s on %s", opts.Spec, StyleLink.Render("http://"+addr))
			return listen(ctx, httpServer)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not open the cache (disables /cache)")

	return cmd
}

// listen serves until ctx is cancelled, then shuts the server down.
func listen(ctx context.Context, s *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
