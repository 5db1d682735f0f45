package embedding

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultSharedCallTimeout = 10 * time.Second

// Cached wraps a Provider with an LRU cache keyed by text. Concurrent requests for the
// same uncached text share one underlying call. The shared call does not inherit any
// caller's cancellation; it is bounded by its own timeout instead.
type Cached struct {
	next        Provider
	cache       *lru.Cache[string, []float32]
	group       singleflight.Group
	callTimeout time.Duration
}

var _ Provider = (*Cached)(nil)

// CacheOption configures a Cached provider.
type CacheOption func(*Cached)

// WithCallTimeout bounds each shared call to the wrapped provider.
func WithCallTimeout(d time.Duration) CacheOption {
	return func(c *Cached) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewCached creates a cache holding up to size embeddings in front of next.
func NewCached(next Provider, size int, opts ...CacheOption) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	c := &Cached{next: next, cache: cache, callTimeout: defaultSharedCallTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Embed returns a copy of the cached embedding, computing it on a miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return copyEmbedding(v), nil
	}
	ch := c.group.DoChan(text, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()
		emb, err := c.next.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(text, emb)
		return emb, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyEmbedding(res.Val.([]float32)), nil
	}
}

// EmbedBatch calls Embed for each text.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, c, texts)
}

// Dimensions returns the wrapped provider's dimension.
func (c *Cached) Dimensions() int {
	return c.next.Dimensions()
}

// Len returns the number of cached embeddings.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Close purges the cache and closes the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Purge()
	return c.next.Close()
}

func copyEmbedding(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
