package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportai-go/internal/ingestion"
	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/rag"
)

// NewRebuildCmd constructs the `supportai rebuild` command, which replaces
// the stored index with a freshly fetched or supplied corpus.
func NewRebuildCmd() *cobra.Command {
	var (
		urls   []string
		files  []string
		sample bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Replace the index with a new corpus",
		Long: `Replace the stored index with a new corpus.

With no flags the default corpus (CORPUS_URL) is fetched. The vectorizer is
refitted on the whole corpus. If the rebuild fails the previous index is kept.

Examples:
  supportai rebuild
  supportai rebuild --url https://www.ziggo.nl/internet --url https://www.ziggo.nl/televisie
  supportai rebuild --file ./corpus/internet.txt --file ./corpus/billing.txt
  supportai rebuild --sample`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if sample && (len(urls) > 0 || len(files) > 0) {
				return fmt.Errorf("rebuild: --sample cannot be combined with --url or --file: %w", rag.ErrInvalidInput)
			}
			if len(urls) > 0 && len(files) > 0 {
				return fmt.Errorf("rebuild: --url and --file are mutually exclusive: %w", rag.ErrInvalidInput)
			}

			var docs []rag.Document
			for _, f := range files {
				text, err := readDocument(f)
				if err != nil {
					return fmt.Errorf("rebuild: %w", err)
				}
				docs = append(docs, ingestion.NewDocument(f, text, map[string]string{"topic": ingestion.TopicGeneral}))
			}
			if sample {
				docs = []rag.Document{ingestion.SampleDocument()}
			}

			a, err := buildApp(ctx, log, false)
			if err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			defer a.Close()

			// A broken stored index must not block replacing it.
			if err := a.pipeline.Start(ctx, false); err != nil {
				log.Warn("rebuild: stored index unusable, replacing it", slog.Any("error", err))
			}

			var st pipeline.Stats
			if len(docs) > 0 {
				st, err = a.pipeline.Rebuild(ctx, docs)
			} else {
				st, err = a.pipeline.RebuildFromSource(ctx, urls)
			}
			if err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Page URL to fetch (repeatable, default: CORPUS_URL)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Local text file to index (repeatable)")
	cmd.Flags().BoolVar(&sample, "sample", false, "Index the built-in sample corpus")

	return cmd
}
