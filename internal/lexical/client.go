// Package lexical adapts keyword-search backends for hybrid retrieval.
package lexical

import (
	"context"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Client runs keyword queries. Scores are backend-native and unbounded; callers normalize them.
// Only documents whose metadata matches filters are returned.
type Client interface {
	Search(ctx context.Context, text string, size int, filters models.Filters) ([]Hit, error)
}

// Indexer is implemented by clients that can also be fed documents.
type Indexer interface {
	Index(ctx context.Context, docID, text string, metadata map[string]interface{}) error
	Delete(ctx context.Context, docID string) error
}

// Hit is a single keyword search hit.
type Hit struct {
	DocID string
	Score float64
}

// Counter is implemented by backends that report how many documents they hold.
type Counter interface {
	DocCount() (uint64, error)
}
