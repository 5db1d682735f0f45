package lexical

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

const defaultScanLimit = 1000

// TextScanner finds stored documents containing any of a set of terms.
type TextScanner interface {
	SearchText(ctx context.Context, terms []string, limit int) ([]*models.Document, error)
}

// StoreClient answers keyword queries by scanning the document store. It is the last
// resort behind an inverted index: scores are raw term occurrence counts.
type StoreClient struct {
	scanner   TextScanner
	scanLimit int
}

var _ Client = (*StoreClient)(nil)

// NewStoreClient scans at most scanLimit matching documents per query; non-positive means 1000.
func NewStoreClient(scanner TextScanner, scanLimit int) *StoreClient {
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	return &StoreClient{scanner: scanner, scanLimit: scanLimit}
}

// Search scores each candidate by how often the query terms occur in its text and title.
func (s *StoreClient) Search(ctx context.Context, text string, size int, filters models.Filters) ([]Hit, error) {
	terms := scanTerms(text)
	if size <= 0 || len(terms) == 0 {
		return []Hit{}, nil
	}
	docs, err := s.scanner.SearchText(ctx, terms, s.scanLimit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(docs))
	for _, doc := range docs {
		if !filters.Match(doc.Metadata) {
			continue
		}
		body := strings.ToLower(doc.Text)
		if title, ok := doc.Metadata["title"].(string); ok {
			body += " " + strings.ToLower(title)
		}
		score := 0
		for _, term := range terms {
			score += strings.Count(body, term)
		}
		if score > 0 {
			hits = append(hits, Hit{DocID: doc.ID, Score: float64(score)})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

// scanTerms lowercases text and splits it on anything that is not a letter or digit,
// dropping repeats.
func scanTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
