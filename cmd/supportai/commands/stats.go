package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/logging"
)

// NewStatsCmd constructs the `supportai stats` command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print a summary of the stored index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, logging.FromContext(ctx), false)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer a.Close()

			if err := a.pipeline.Start(ctx, false); err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), a.pipeline.Stats())
		},
	}
}
