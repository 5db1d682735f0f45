package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/inbox"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

const ingestConcurrency = 4

var (
	flagIngestID   string
	flagIngestText string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents from files or from --text",
	Long: `Ingest adds documents to the index and assigns them to clusters.

File documents get an id derived from their absolute path, the same id the
inbox uses, so re-ingesting a file replaces its previous version.

Examples:
  summiva ingest notes/cats.txt notes/dogs.md
  summiva ingest --id cats --text "cats purr and sleep"`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestID, "id", "", "document id for --text (empty = generated)")
	ingestCmd.Flags().StringVar(&flagIngestText, "text", "", "document text")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if flagIngestText == "" && len(args) == 0 {
		return fmt.Errorf("nothing to ingest: pass files or --text")
	}
	format, err := outputFormat()
	if err != nil {
		return err
	}
	inputs, err := ingestInputs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	results := make([]*models.IngestResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			res, err := b.Ingest(gctx, in)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", in.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, res := range results {
		if err := cli.WriteIngestResult(cmd.OutOrStdout(), res, format); err != nil {
			return err
		}
	}
	return nil
}

func ingestInputs(paths []string) ([]*models.DocumentInput, error) {
	var inputs []*models.DocumentInput
	if flagIngestText != "" {
		inputs = append(inputs, &models.DocumentInput{ID: flagIngestID, Text: flagIngestText})
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		text, err := inbox.ReadText(abs)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, &models.DocumentInput{
			ID:       inbox.DocID(abs),
			Text:     text,
			Metadata: map[string]interface{}{"title": filepath.Base(abs), "source_path": abs},
		})
	}
	return inputs, nil
}
