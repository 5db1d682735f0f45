package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/embedding"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/lexical"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/persist"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/storage"
)

const lexicalRetryDelay = 250 * time.Millisecond

// openEngine opens the document store, lexical index, embedder and snapshot directory and
// starts an engine over them. On error everything opened so far is closed.
func openEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *engine.Engine, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	docs, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	closers = append(closers, docs.Close)

	bleveOpts := []lexical.BleveOption{lexical.WithTermCoverage()}
	if cfg.Search.Fuzziness > 0 {
		bleveOpts = append(bleveOpts, lexical.WithFuzziness(cfg.Search.Fuzziness))
	}
	bleveClient, err := lexical.NewBleveClient(cfg.Storage.BleveIndexPath, bleveOpts...)
	if err != nil {
		return nil, err
	}
	closers = append(closers, bleveClient.Close)
	// The store scan answers keyword queries when the Bleve index keeps failing.
	lex := lexical.NewFallback(0,
		lexical.NewRetrying(bleveClient, cfg.Search.Retries(), lexicalRetryDelay, logger.Named("lexical")),
		lexical.NewStoreClient(docs, 0))

	embedder, err := embedding.NewFromConfig(cfg.Embedding, logger.Named("embedding"))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	closers = append(closers, embedder.Close)

	snaps, err := persist.Open(cfg.Storage.SnapshotDir,
		persist.WithLogger(logger.Named("persist")),
		persist.WithDebounce(cfg.Engine.SaveDebounce))
	if err != nil {
		return nil, errors.Join(err, errors.New("is a summiva server running? pass --server to use it"))
	}
	closers = append(closers, snaps.Close)

	return engine.New(ctx, engine.Deps{
		Embedder:  embedder,
		Lexical:   lex,
		Documents: docs,
		Snapshots: snaps,
	}, cfg, engine.WithLogger(logger.Named("engine")))
}
