// Package commands defines all Cobra CLI commands for the supportai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/audit"
	"github.com/54b3r/supportai-go/internal/config"
	"github.com/54b3r/supportai-go/internal/logging"
)

// configPath holds the --config flag value.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "supportai",
		Short: "supportai answers customer-support questions from your support pages",
		Long: `supportai indexes customer-support pages and answers questions about them.

Questions are matched against the indexed passages by cosine similarity. When a
chat model is configured (MODEL_PROVIDER) the top passages are turned into a
written answer; otherwise the best passages are quoted directly.

Configuration is read from env vars, ./.env and an optional YAML or TOML file
(~/.supportai/config.yaml, ./supportai.yaml or ./supportai.toml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// LOG_* may have come from the file, rebuild the logger.
			log = logging.New()
			audit.LogCommandStart(log, cmd.Name(), path)
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or TOML config file (default: ~/.supportai/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewIngestCmd(),
		NewRebuildCmd(),
		NewStatsCmd(),
		NewHistoryCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return root
}
