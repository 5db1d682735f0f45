package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
)

var flagSimilarK int

var similarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "List stored documents similar to a piece of text",
	Long: `Similar embeds the text and lists the nearest stored documents whose similarity
reaches cluster.similarity_threshold.

Examples:
  summiva similar "quarterly revenue report"
  summiva similar -n 10 -o json neural networks`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&flagSimilarK, "count", "n", 5, "maximum number of documents")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	text := joinArgs(args)
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	format, err := outputFormat()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	docs, err := b.SimilarDocuments(ctx, text, flagSimilarK)
	if err != nil {
		return err
	}
	return cli.WriteSimilarDocuments(cmd.OutOrStdout(), docs, format)
}
