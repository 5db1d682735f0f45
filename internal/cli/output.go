// Package cli provides output formatting and an HTTP client for the summiva command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a search response in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n", len(response.Results), response.Query, response.QueryTime)
	if response.Degraded {
		fmt.Fprintf(w, "Warning: degraded results, unavailable: %s\n", joinSources(response.FailedSources))
	}
	fmt.Fprintln(w)
	if len(response.Results) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDOCUMENT\tFUSED\tLEXICAL\tVECTOR")
	for _, r := range response.Results {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\t%s\n", r.Rank, r.DocID, r.FusedScore, score(r.LexicalScore), score(r.VectorScore))
	}
	return tw.Flush()
}

func score(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *p)
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// WriteSimilarDocuments writes documents with their similarity to the query text.
func WriteSimilarDocuments(w io.Writer, docs []models.SimilarDocument, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []models.SimilarDocument{}
		}
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No similar documents.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT	SIMILARITY	TEXT")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", d.DocID, d.Similarity, preview(d.Text, 60))
	}
	return tw.Flush()
}

// preview shortens text to at most n runes.
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}

// WriteIngestResult writes where a document landed.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	state := "joined"
	if res.NewCluster {
		state = "created"
	}
	_, err := fmt.Fprintf(w, "%s -> cluster %d (%s, similarity %.4f, internal id %d)\n",
		res.DocID, res.ClusterID, state, res.Similarity, res.InternalID)
	return err
}

// WriteClusters writes cluster summaries.
func WriteClusters(w io.Writer, clusters []models.ClusterSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, clusters)
	}
	if len(clusters) == 0 {
		_, err := fmt.Fprintln(w, "No clusters.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLUSTER\tSIZE\tREPRESENTATIVE")
	for _, c := range clusters {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", c.ID, c.Size, c.Representative)
	}
	return tw.Flush()
}

// WriteIDs writes one id per line, or a JSON array.
func WriteIDs[T any](w io.Writer, ids []T, format OutputFormat) error {
	if format == OutputJSON {
		if ids == nil {
			ids = []T{}
		}
		return writeJSON(w, ids)
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats writes engine statistics.
func WriteStats(w io.Writer, stats models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Documents:\t%d\n", stats.Documents)
	fmt.Fprintf(tw, "Clusters:\t%d\n", stats.Clusters)
	fmt.Fprintf(tw, "Dimensions:\t%d\n", stats.Dimensions)
	fmt.Fprintf(tw, "Next internal id:\t%d\n", stats.NextInternalID)
	fmt.Fprintf(tw, "Retrains:\t%d (%d failed)\n", stats.Retrains, stats.RetrainFailures)
	fmt.Fprintf(tw, "Retrain running:\t%t\n", stats.RetrainRunning)
	fmt.Fprintf(tw, "Snapshot saves:\t%d (%d failed)\n", stats.SnapshotSaves, stats.SnapshotFailures)
	return tw.Flush()
}
