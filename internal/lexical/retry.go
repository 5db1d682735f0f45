package lexical

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Retrying re-issues failed searches with a fixed delay. The caller's context bounds
// the total time, so retries never outlive the search branch budget.
type Retrying struct {
	next    Client
	retries uint64
	delay   time.Duration
	logger  *zap.Logger
}

var _ Client = (*Retrying)(nil)

// NewRetrying wraps next with up to retries extra attempts spaced by delay.
func NewRetrying(next Client, retries int, delay time.Duration, logger *zap.Logger) *Retrying {
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, retries: uint64(retries), delay: delay, logger: logger}
}

// Search delegates to the wrapped client, retrying errors other than context expiry.
func (r *Retrying) Search(ctx context.Context, text string, size int, filters models.Filters) ([]Hit, error) {
	var hits []Hit
	attempt := 0
	b := retry.WithMaxRetries(r.retries, retry.NewConstant(r.delay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var err error
		hits, err = r.next.Search(ctx, text, size, filters)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.logger.Debug("lexical search failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Index forwards to the wrapped client when it is an Indexer.
func (r *Retrying) Index(ctx context.Context, docID, text string, metadata map[string]interface{}) error {
	if ix, ok := r.next.(Indexer); ok {
		return ix.Index(ctx, docID, text, metadata)
	}
	return nil
}

// Delete forwards to the wrapped client when it is an Indexer.
func (r *Retrying) Delete(ctx context.Context, docID string) error {
	if ix, ok := r.next.(Indexer); ok {
		return ix.Delete(ctx, docID)
	}
	return nil
}

// DocCount forwards to the wrapped client when it is a Counter.
func (r *Retrying) DocCount() (uint64, error) {
	if c, ok := r.next.(Counter); ok {
		return c.DocCount()
	}
	return 0, errors.New("wrapped lexical client does not count documents")
}

// Close closes the wrapped client when it holds resources.
func (r *Retrying) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
