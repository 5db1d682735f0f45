// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
)

// Provider produces vector embeddings for text. Implementations must return
// models.ErrBackendTimeout (wrapped) when they cannot answer in time; WithTimeout enforces this.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

func embedEach(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// NewFromConfig builds the configured provider chain: the base provider ("onnx", "hashing",
// or "auto" for onnx falling back to hashing), an LRU cache, and the per-call timeout.
func NewFromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var base Provider
	switch cfg.Provider {
	case "hashing":
		base = NewHashingEmbedder(cfg.Dimensions)
	case "onnx":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		base = onnx
	case "auto", "":
		hashing := NewHashingEmbedder(cfg.Dimensions)
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using hashing embedder", zap.Error(err))
			base = hashing
		} else {
			fb, err := NewFallback(cfg.Timeout, onnx, hashing)
			if err != nil {
				_ = onnx.Close()
				return nil, err
			}
			base = fb
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCached(base, cfg.CacheSize, WithCallTimeout(cfg.Timeout))
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		base = cached
	}
	return WithTimeout(base, cfg.Timeout), nil
}
