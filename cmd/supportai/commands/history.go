package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/config"
	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/store"
)

// NewHistoryCmd constructs the `supportai history` command, which lists
// recently answered questions from the ask log.
func NewHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			s := config.FromEnv()
			if strings.EqualFold(s.DBPath, config.MemoryDBPath) {
				return errors.New("history: the ask log is not kept when SUPPORTAI_DB=memory")
			}
			path := s.DBPath
			if path == "" {
				var err error
				if path, err = store.DefaultDBPath(); err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}
			db, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer db.Close()

			asks, err := db.RecentAsks(ctx, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			log.Debug("history: loaded", slog.Int("count", len(asks)))
			if asJSON {
				return printJSON(cmd.OutOrStdout(), asks)
			}

			if len(asks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No questions answered yet."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render("Recent questions"))
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(mutedStyle).
				Headers("TIME", "MODE", "SCORE", "LATENCY", "QUESTION").
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headingStyle.Padding(0, 1)
					}
					return cellStyle
				})
			for _, a := range asks {
				t.Row(
					a.CreatedAt.Local().Format(time.DateTime),
					a.Mode,
					strconv.FormatFloat(a.TopScore, 'f', 3, 64),
					a.Latency.Round(time.Millisecond).String(),
					a.Question,
				)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	return cmd
}
