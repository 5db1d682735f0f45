package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Fallback tries providers in order under one shared time budget and returns the first
// embedding produced. All providers must share one dimension.
type Fallback struct {
	providers []Provider
	budget    time.Duration
}

var _ Provider = (*Fallback)(nil)

// NewFallback builds a prioritized provider chain. A non-positive budget means no shared limit.
func NewFallback(budget time.Duration, providers ...Provider) (*Fallback, error) {
	if len(providers) == 0 {
		return nil, errors.New("fallback needs at least one provider")
	}
	dims := providers[0].Dimensions()
	for _, p := range providers[1:] {
		if p.Dimensions() != dims {
			return nil, fmt.Errorf("%w: fallback providers have %d and %d dimensions",
				models.ErrDimensionMismatch, dims, p.Dimensions())
		}
	}
	return &Fallback{providers: providers, budget: budget}, nil
}

// Embed returns the first successful embedding. Errors from every provider are joined.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.budget)
		defer cancel()
	}
	var errs []error
	for _, p := range f.providers {
		emb, err := p.Embed(ctx, text)
		if err == nil {
			return emb, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// EmbedBatch calls Embed for each text.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, f, texts)
}

// Dimensions returns the shared dimension.
func (f *Fallback) Dimensions() int {
	return f.providers[0].Dimensions()
}

// Close closes every provider and returns the joined errors.
func (f *Fallback) Close() error {
	var errs []error
	for _, p := range f.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
