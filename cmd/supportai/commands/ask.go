package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/tracing"
)

// NewAskCmd constructs the `supportai ask` command, which answers one
// question against the stored index.
func NewAskCmd() *cobra.Command {
	var (
		asJSON    bool
		bootstrap bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a customer-support question",
		Long: `Answer a customer-support question from the indexed support pages.

The answer cites the sources of the passages it was built from. With no
chat model configured (MODEL_PROVIDER=none) the best passages are quoted.

Examples:
  supportai ask "What internet speeds do you offer?"
  supportai ask --json "How do I pay my bill?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			flush := tracing.Enable(log)
			defer flush()

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			if err := a.pipeline.Start(ctx, bootstrap); err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			ans, err := a.pipeline.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ans)
			}

			out := cmd.OutOrStdout()
			if !ans.Success {
				fmt.Fprintln(out, warnStyle.Render(ans.Answer))
				return nil
			}
			fmt.Fprintln(out, ans.Answer)
			fmt.Fprintln(out)
			fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("Sources (%s)", ans.Mode)))
			for i, src := range ans.Sources {
				fmt.Fprintf(out, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("[%d]", i+1)), src)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full answer, passages included, as JSON")
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", true, "Index the default corpus when no stored index exists")

	return cmd
}
