package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/logging"
)

// NewIngestCmd constructs the `supportai ingest` command, which adds one
// document to the stored index without rebuilding it.
func NewIngestCmd() *cobra.Command {
	var (
		file   string
		text   string
		source string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add one document to the index",
		Long: `Add one document to the stored index.

The document is chunked and embedded with the index's current vectorizer. If
the index is empty a tfidf vectorizer is fitted on this document. Content that
is already indexed is skipped.

Examples:
  supportai ingest --file ./faq/billing.txt --source https://www.ziggo.nl/klantenservice/factuur
  echo "Our TV packages include 80 channels." | supportai ingest --file - --source tv-note
  supportai ingest --text "Roaming is free within the EU." --source mobile-note`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if (file == "") == (text == "") {
				return errors.New("ingest: exactly one of --file or --text is required")
			}
			if file != "" {
				var err error
				if text, err = readDocument(file); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				if source == "" && file != "-" {
					source = file
				}
			}

			a, err := buildApp(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer a.Close()

			if err := a.pipeline.Start(ctx, false); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			st, err := a.pipeline.Ingest(ctx, text, source)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("ingest complete",
				slog.String("document_id", st.DocumentID),
				slog.Int("chunks", st.Chunks),
				slog.Bool("skipped", st.Skipped),
			)
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the document from this file (- for stdin)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Document text")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source identifier, usually the page URL (default: the file path, or \"inline\")")

	return cmd
}
