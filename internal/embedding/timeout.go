package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every Embed call of next by d and reports an expired budget as
// models.ErrBackendTimeout. Cancellation by the caller is returned unchanged.
// A non-positive d returns next as is.
func WithTimeout(next Provider, d time.Duration) Provider {
	if d <= 0 {
		return next
	}
	return &timeoutProvider{next: next, timeout: d}
}

func (p *timeoutProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		emb []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		emb, err := p.next.Embed(tctx, text)
		done <- result{emb, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("embed: %w", models.ErrBackendTimeout)
		}
		return r.emb, r.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("embed after %s: %w", p.timeout, models.ErrBackendTimeout)
	}
}

func (p *timeoutProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, p, texts)
}

func (p *timeoutProvider) Dimensions() int {
	return p.next.Dimensions()
}

func (p *timeoutProvider) Close() error {
	return p.next.Close()
}
