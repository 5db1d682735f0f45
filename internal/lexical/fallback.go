package lexical

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Fallback queries clients in priority order under one shared time budget and returns the
// first successful answer. Writes go to every client that indexes.
type Fallback struct {
	clients []Client
	budget  time.Duration
}

var (
	_ Client  = (*Fallback)(nil)
	_ Indexer = (*Fallback)(nil)
	_ Counter = (*Fallback)(nil)
)

// NewFallback builds a prioritized client chain. A non-positive budget means no shared limit.
func NewFallback(budget time.Duration, clients ...Client) *Fallback {
	return &Fallback{clients: clients, budget: budget}
}

// Search returns the first successful result. Errors from every client are joined.
func (f *Fallback) Search(ctx context.Context, text string, size int, filters models.Filters) ([]Hit, error) {
	if len(f.clients) == 0 {
		return nil, errors.New("no lexical clients configured")
	}
	if f.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.budget)
		defer cancel()
	}
	var errs []error
	for _, c := range f.clients {
		hits, err := c.Search(ctx, text, size, filters)
		if err == nil {
			return hits, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// Index feeds every client that is an Indexer.
func (f *Fallback) Index(ctx context.Context, docID, text string, metadata map[string]interface{}) error {
	var errs []error
	for _, c := range f.clients {
		if ix, ok := c.(Indexer); ok {
			if err := ix.Index(ctx, docID, text, metadata); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Delete removes docID from every client that is an Indexer.
func (f *Fallback) Delete(ctx context.Context, docID string) error {
	var errs []error
	for _, c := range f.clients {
		if ix, ok := c.(Indexer); ok {
			if err := ix.Delete(ctx, docID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// DocCount reports the first client that counts its documents.
func (f *Fallback) DocCount() (uint64, error) {
	for _, c := range f.clients {
		if counter, ok := c.(Counter); ok {
			return counter.DocCount()
		}
	}
	return 0, errors.New("no lexical client counts documents")
}

// Close closes every client that holds resources.
func (f *Fallback) Close() error {
	var errs []error
	for _, c := range f.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
