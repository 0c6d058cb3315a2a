package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/server"
	"github.com/54b3r/supportai-go/internal/tracing"
	"github.com/54b3r/supportai-go/internal/watch"
)

// NewServeCmd constructs the `supportai serve` command, which loads (or
// builds) the index and serves the HTTP API.
func NewServeCmd() *cobra.Command {
	var (
		host      string
		port      int
		watchPath string
		bootstrap bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the supportai HTTP API",
		Long: `Start the supportai HTTP API.

The stored index is loaded from SUPPORTAI_DB. When nothing usable is stored the
default corpus (CORPUS_URL) is fetched and indexed first, unless --bootstrap=false.
With --watch the index is rebuilt from a local file whenever it changes.

Examples:
  supportai serve
  supportai serve --port 9090
  supportai serve --watch ./corpus/support.txt
  MODEL_PROVIDER=ollama supportai serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			flush := tracing.Enable(log)
			defer flush()

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			if err := a.pipeline.Start(ctx, bootstrap); err != nil {
				// Serve anyway: /api/ingest and /api/rebuild can still populate the index.
				log.Error("serve: index not ready", slog.Any("error", err))
			}

			if !cmd.Flags().Changed("host") {
				host = a.settings.Host
			}
			if !cmd.Flags().Changed("port") {
				port = a.settings.Port
			}

			srv, err := server.New(a.pipeline, a.history(), &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: a.pingers(),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })
			if watchPath != "" {
				w, err := watch.New(a.pipeline, watch.Config{Path: watchPath, Logger: log})
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				g.Go(func() error { return w.Run(gctx) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env SUPPORTAI_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env SUPPORTAI_PORT)")
	cmd.Flags().StringVar(&watchPath, "watch", "", "Rebuild the index from this file whenever it changes")
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", true, "Index the default corpus when no stored index exists")

	return cmd
}
