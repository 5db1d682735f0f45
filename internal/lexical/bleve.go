package lexical

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

const filtersField = "filters"

// BleveClient is a Client and Indexer backed by a Bleve index.
type BleveClient struct {
	index        bleve.Index
	fuzziness    int
	termCoverage bool
}

var (
	_ Client  = (*BleveClient)(nil)
	_ Indexer = (*BleveClient)(nil)
)

// BleveOption configures a BleveClient.
type BleveOption func(*BleveClient)

// WithFuzziness enables fuzzy term matching within the given edit distance (1 or 2).
func WithFuzziness(n int) BleveOption {
	return func(b *BleveClient) {
		b.fuzziness = n
	}
}

// WithTermCoverage penalizes hits that match only some of a multi-term query by
// (matched/total)^2.
func WithTermCoverage() BleveOption {
	return func(b *BleveClient) {
		b.termCoverage = true
	}
}

type bleveDoc struct {
	Text    string   `json:"text"`
	Title   string   `json:"title,omitempty"`
	Filters []string `json:"filters,omitempty"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match exact words.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	// Metadata pairs are indexed whole as "key=value" terms.
	filterFieldMapping := bleve.NewTextFieldMapping()
	filterFieldMapping.Analyzer = keyword.Name
	filterFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(filtersField, filterFieldMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveClient creates or opens a Bleve index at path. An empty path creates an
// in-memory index.
func NewBleveClient(path string, opts ...BleveOption) (*BleveClient, error) {
	var (
		index bleve.Index
		err   error
	)
	switch {
	case path == "":
		index, err = bleve.NewMemOnly(newMapping())
	case exists(path):
		index, err = bleve.Open(path)
	default:
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, fmt.Errorf("create lexical index dir: %w", mkErr)
		}
		index, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	b := &BleveClient{index: index}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Index adds or replaces a document. A "title" string in metadata is indexed as well, and
// every scalar metadata value is indexed for filtering.
func (b *BleveClient) Index(ctx context.Context, docID, text string, metadata map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := bleveDoc{Text: text, Filters: models.FilterTerms(metadata)}
	if title, ok := metadata["title"].(string); ok {
		doc.Title = title
	}
	if err := b.index.Index(docID, doc); err != nil {
		return fmt.Errorf("Bleve index %s: %w", docID, err)
	}
	return nil
}

// Delete removes a document from the index.
func (b *BleveClient) Delete(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Delete(docID)
}

// Search runs a match (or fuzzy) query over text and title, restricted by filters, and
// returns up to size hits, highest score first, ties by doc id.
func (b *BleveClient) Search(ctx context.Context, text string, size int, filters models.Filters) ([]Hit, error) {
	if size <= 0 {
		return []Hit{}, nil
	}
	req := bleve.NewSearchRequest(withFilters(b.buildQuery(text, ""), filters))
	req.Size = size
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]Hit, len(results.Hits))
	for i, h := range results.Hits {
		hits[i] = Hit{DocID: h.ID, Score: h.Score}
	}

	if terms := tokenizeQuery(text); b.termCoverage && len(terms) > 1 {
		coverage := b.calculateTermCoverage(ctx, terms, size)
		for i := range hits {
			matched := coverage[hits[i].DocID]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			hits[i].Score *= c * c
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	return hits, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveClient) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveClient) Close() error {
	return b.index.Close()
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildQuery returns a match query, or a disjunction of fuzzy term queries when fuzziness
// is enabled. An empty field searches all fields.
func (b *BleveClient) buildQuery(text string, field string) blevequery.Query {
	terms := tokenizeQuery(text)
	if b.fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(text)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(b.fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// withFilters requires every filter key to match one of its values.
func withFilters(q blevequery.Query, filters models.Filters) blevequery.Query {
	if len(filters) == 0 {
		return q
	}
	conjuncts := []blevequery.Query{q}
	for _, key := range filters.Keys() {
		values := filters.Values(key)
		terms := make([]blevequery.Query, len(values))
		for i, v := range values {
			tq := bleve.NewTermQuery(models.FilterTerm(key, v))
			tq.SetField(filtersField)
			terms[i] = tq
		}
		if len(terms) == 1 {
			conjuncts = append(conjuncts, terms[0])
			continue
		}
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(terms...))
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

// calculateTermCoverage counts how many query terms each document matches.
func (b *BleveClient) calculateTermCoverage(ctx context.Context, terms []string, size int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(b.buildQuery(term, ""))
		req.Size = size
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}
