package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/lexical"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// rebuildFromStore repopulates the empty index and cluster store from the document store in
// id order. Stored embeddings are reused when their dimension matches; other documents are
// re-embedded and written back.
func (e *Engine) rebuildFromStore(ctx context.Context) error {
	dims := e.index.Dimensions()
	threshold := e.cfg.Cluster.Threshold()
	var stale []*models.Document
	rebuilt := 0
	err := e.docs.Iterate(ctx, func(doc *models.Document) error {
		emb := doc.Embedding
		if len(emb) != dims {
			var err error
			emb, err = e.embedder.Embed(ctx, doc.Text)
			if err != nil {
				return fmt.Errorf("embed %s: %w", doc.ID, err)
			}
			if len(emb) != dims {
				return fmt.Errorf("embed %s: %w", doc.ID, models.ErrDimensionMismatch)
			}
			doc.Embedding = emb
			stale = append(stale, doc)
		}
		if _, err := e.index.Add(ctx, doc.ID, emb); err != nil {
			return fmt.Errorf("index %s: %w", doc.ID, err)
		}
		if _, err := e.clusters.Assign(doc.ID, emb, threshold); err != nil {
			return fmt.Errorf("assign %s: %w", doc.ID, err)
		}
		rebuilt++
		return nil
	})
	if err != nil {
		return err
	}
	// Written after Iterate so the store is not read and written at once.
	for _, doc := range stale {
		if err := e.docs.Put(ctx, doc); err != nil {
			return fmt.Errorf("store re-embedded %s: %w", doc.ID, err)
		}
	}
	e.logger.Info("rebuilt index from document store",
		zap.Int("documents", rebuilt),
		zap.Int("reembedded", len(stale)),
		zap.Int("clusters", e.clusters.Count()))
	return nil
}

// reconcile brings restored snapshots back in line with the document store: stored
// documents the index lacks, or holds with a different embedding, are placed again, and
// index entries or cluster members with no stored document are dropped. It returns the
// number of documents touched.
func (e *Engine) reconcile(ctx context.Context) (int, error) {
	dims := e.index.Dimensions()
	stored := make(map[string]struct{})
	var missing, stale []*models.Document
	err := e.docs.Iterate(ctx, func(doc *models.Document) error {
		stored[doc.ID] = struct{}{}
		if len(doc.Embedding) == dims {
			if _, same := e.sameEmbedding(doc.ID, doc.Embedding); !same {
				missing = append(missing, doc)
			}
			return nil
		}
		if _, ok := e.index.Lookup(doc.ID); ok {
			return nil
		}
		emb, err := e.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed %s: %w", doc.ID, err)
		}
		if len(emb) != dims {
			return fmt.Errorf("embed %s: %w", doc.ID, models.ErrDimensionMismatch)
		}
		doc.Embedding = emb
		stale = append(stale, doc)
		missing = append(missing, doc)
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, doc := range stale {
		if err := e.docs.Put(ctx, doc); err != nil {
			return 0, fmt.Errorf("store re-embedded %s: %w", doc.ID, err)
		}
	}

	threshold := e.cfg.Cluster.Threshold()
	for _, doc := range missing {
		if _, err := e.index.Add(ctx, doc.ID, doc.Embedding); err != nil {
			return 0, fmt.Errorf("index %s: %w", doc.ID, err)
		}
		if _, err := e.clusters.Assign(doc.ID, doc.Embedding, threshold); err != nil {
			return 0, fmt.Errorf("assign %s: %w", doc.ID, err)
		}
	}

	dropped := 0
	for _, entry := range e.index.Entries() {
		if _, ok := stored[entry.DocID]; ok {
			continue
		}
		if err := e.index.Remove(ctx, entry.DocID); err != nil {
			return 0, fmt.Errorf("remove %s: %w", entry.DocID, err)
		}
		_ = e.clusters.Detach(entry.DocID)
		dropped++
	}
	for _, c := range e.clusters.Clusters() {
		for _, member := range e.clusters.MembersOf(c.ID) {
			if _, ok := e.index.Lookup(member); ok {
				continue
			}
			_ = e.clusters.Detach(member)
			dropped++
		}
	}

	if n := len(missing) + dropped; n > 0 {
		e.logger.Info("reconciled snapshots with document store",
			zap.Int("placed", len(missing)),
			zap.Int("reembedded", len(stale)),
			zap.Int("dropped", dropped))
		return n, nil
	}
	return 0, nil
}

// repairClusters assigns indexed documents that have no cluster, which happens when the
// cluster snapshot was missing.
func (e *Engine) repairClusters() int {
	repaired := 0
	for _, entry := range e.index.Entries() {
		if _, ok := e.clusters.ClusterOf(entry.DocID); ok {
			continue
		}
		if _, err := e.clusters.Assign(entry.DocID, entry.Vector, e.cfg.Cluster.Threshold()); err != nil {
			e.logger.Warn("cluster repair failed", zap.String("doc_id", entry.DocID), zap.Error(err))
			continue
		}
		repaired++
	}
	if repaired > 0 {
		e.logger.Info("assigned unclustered documents", zap.Int("documents", repaired))
	}
	return repaired
}

// resyncLexical re-feeds the lexical backend when it holds fewer documents than the store,
// as after opening an in-memory index.
func (e *Engine) resyncLexical(ctx context.Context) {
	if e.indexer == nil {
		return
	}
	counter, ok := e.lexical.(lexical.Counter)
	if !ok {
		return
	}
	have, err := counter.DocCount()
	if err != nil {
		e.logger.Debug("lexical document count unavailable", zap.Error(err))
		return
	}
	want, err := e.docs.Count(ctx)
	if err != nil || int64(have) >= want {
		return
	}
	fed := 0
	err = e.docs.Iterate(ctx, func(doc *models.Document) error {
		if err := e.indexer.Index(ctx, doc.ID, doc.Text, doc.Metadata); err != nil {
			return err
		}
		fed++
		return nil
	})
	if err != nil {
		e.logger.Warn("lexical resync incomplete", zap.Int("documents", fed), zap.Error(err))
		return
	}
	e.logger.Info("lexical index resynced", zap.Int("documents", fed))
}
