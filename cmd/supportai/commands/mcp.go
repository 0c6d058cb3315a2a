package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/mcp"
	"github.com/54b3r/supportai-go/internal/tracing"
)

// NewMCPCmd constructs the `supportai mcp` command, which serves the
// pipeline as MCP tools over stdio.
func NewMCPCmd() *cobra.Command {
	var bootstrap bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the support index to AI assistants over MCP (stdio)",
		Long: `Serve the support index as Model Context Protocol tools over stdio.

Tools: ask_support, ingest_document, index_stats.
Logs go to stderr; stdout carries the protocol.

Example client configuration:
  {"command": "supportai", "args": ["mcp"]}`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			flush := tracing.Enable(log)
			defer flush()

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer a.Close()

			if err := a.pipeline.Start(ctx, bootstrap); err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			srv, err := mcp.NewServer(a.pipeline)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&bootstrap, "bootstrap", true, "Index the default corpus when no stored index exists")

	return cmd
}
