// Package storage persists documents as the source of truth the indices are rebuilt from.
package storage

import (
	"context"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// DocumentStore defines document persistence operations.
type DocumentStore interface {
	// Put inserts or replaces a document, keeping the original creation time.
	Put(ctx context.Context, doc *models.Document) error
	// Get returns models.ErrNotFound (wrapped) for unknown ids.
	Get(ctx context.Context, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*models.Document, error)
	// Iterate calls fn for every document in id order and stops at the first error.
	Iterate(ctx context.Context, fn func(*models.Document) error) error
	Count(ctx context.Context) (int64, error)
	Close() error
}
