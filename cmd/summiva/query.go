package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

var (
	flagQuerySize    int
	flagQueryAlpha   float64
	flagQueryFilters []string
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a hybrid keyword and vector query",
	Long: `Query fuses keyword and vector results: fused = alpha*vector + (1-alpha)*keyword.

The query is all arguments joined by spaces, quoted or not.

Examples:
  summiva query machine learning
  summiva query --alpha 1 "cats and dogs"      # vector only
  summiva query --alpha 0 -o json invoice      # keyword only, JSON output
  summiva query --filter lang=en --filter tag=ml --filter tag=ai transformers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&flagQuerySize, "size", "n", 0, "number of results (0 = configured default)")
	queryCmd.Flags().Float64Var(&flagQueryAlpha, "alpha", 0, "vector weight in [0,1] (default from config)")
	queryCmd.Flags().StringArrayVar(&flagQueryFilters, "filter", nil, "metadata filter key=value; repeat a key to match any of its values")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	text := joinArgs(args)
	if text == "" {
		return fmt.Errorf("query cannot be empty")
	}
	format, err := outputFormat()
	if err != nil {
		return err
	}
	filters, err := parseFilters(flagQueryFilters)
	if err != nil {
		return err
	}
	q := &models.SearchQuery{Query: text, Size: flagQuerySize, Filters: filters}
	if cmd.Flags().Changed("alpha") {
		alpha := flagQueryAlpha
		q.Alpha = &alpha
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	resp, err := b.Query(ctx, q)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
}

// parseFilters turns key=value pairs into filters. A key given more than once matches
// any of its values.
func parseFilters(pairs []string) (models.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string][]interface{})
	var order []string
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want key=value)", pair)
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = append(values[key], value)
	}
	filters := make(models.Filters, len(values))
	for _, key := range order {
		if v := values[key]; len(v) == 1 {
			filters[key] = v[0]
		} else {
			filters[key] = v
		}
	}
	return filters, nil
}
