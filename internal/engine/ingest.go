package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
	"github.com/INFO-698-InfoSci-Capstone/summiva/pkg/utils"
)

// Ingest embeds text, adds it to the vector index, assigns it to a cluster, records it in
// the document store and feeds the lexical backend. An empty docID gets a generated id.
// Re-ingesting a document with an unchanged embedding leaves its index slot and cluster
// untouched.
func (e *Engine) Ingest(ctx context.Context, docID, text string, metadata map[string]interface{}) (*models.IngestResult, error) {
	text = utils.CollapseWhitespace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: document text cannot be empty", models.ErrInvalidQuery)
	}
	if docID == "" {
		docID = uuid.New().String()
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", docID, err)
	}
	if len(emb) != e.index.Dimensions() {
		return nil, fmt.Errorf("embed %s: %w: got %d, expected %d", docID, models.ErrDimensionMismatch, len(emb), e.index.Dimensions())
	}

	doc := &models.Document{ID: docID, Text: text, Metadata: metadata, Embedding: emb}
	res, err := e.store(ctx, doc)
	if err != nil {
		return nil, err
	}
	if e.indexer != nil {
		if err := e.indexer.Index(ctx, docID, text, metadata); err != nil {
			e.logger.Warn("lexical indexing failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}

	e.logger.Debug("document ingested",
		zap.String("doc_id", docID),
		zap.Uint64("internal_id", res.InternalID),
		zap.Uint64("cluster_id", res.ClusterID),
		zap.Bool("new_cluster", res.NewCluster))
	e.maybeRetrain()
	return res, nil
}

// store records doc in the document store and then places it. A placement failure
// restores the previously stored version, or deletes the new row, so the store never
// holds a document the index does not.
func (e *Engine) store(ctx context.Context, doc *models.Document) (*models.IngestResult, error) {
	unlock := e.lockDoc(doc.ID)
	defer unlock()

	prev, err := e.docs.Get(ctx, doc.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("load stored document %s: %w", doc.ID, err)
	}
	if err := e.docs.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document %s: %w", doc.ID, err)
	}
	res, err := e.place(ctx, doc.ID, doc.Embedding)
	if err == nil {
		return res, nil
	}
	var rollbackErr error
	if prev != nil {
		rollbackErr = e.docs.Put(ctx, prev)
	} else {
		rollbackErr = e.docs.Delete(ctx, doc.ID)
	}
	if rollbackErr != nil {
		e.logger.Error("document store rollback failed", zap.String("doc_id", doc.ID), zap.Error(rollbackErr))
	}
	return nil, err
}

// place adds emb to the index and the cluster store as one step with respect to snapshots.
// The caller holds the document lock.
func (e *Engine) place(ctx context.Context, docID string, emb []float32) (*models.IngestResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	internalID, unchanged := e.sameEmbedding(docID, emb)
	if !unchanged {
		var err error
		internalID, err = e.index.Add(ctx, docID, emb)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", docID, err)
		}
	}
	a, err := e.clusters.Assign(docID, emb, e.cfg.Cluster.Threshold())
	if err != nil {
		return nil, fmt.Errorf("assign %s: %w", docID, err)
	}
	return &models.IngestResult{
		DocID:      docID,
		InternalID: internalID,
		ClusterID:  a.ClusterID,
		Similarity: a.Similarity,
		NewCluster: a.Created,
	}, nil
}

func (e *Engine) sameEmbedding(docID string, emb []float32) (uint64, bool) {
	id, ok := e.index.Lookup(docID)
	if !ok {
		return 0, false
	}
	stored, err := e.index.Reconstruct(id)
	if err != nil {
		return 0, false
	}
	norm := vector.Normalize(emb)
	for i := range norm {
		if norm[i] != stored[i] {
			return 0, false
		}
	}
	return id, true
}

// Remove deletes a document from the index, its cluster, the document store and the
// lexical backend. Returns models.ErrNotFound if the document is not indexed.
func (e *Engine) Remove(ctx context.Context, docID string) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	unlock := e.lockDoc(docID)
	if err := e.unplace(ctx, docID); err != nil {
		unlock()
		return err
	}
	if err := e.docs.Delete(ctx, docID); err != nil && !errors.Is(err, models.ErrNotFound) {
		unlock()
		return fmt.Errorf("delete stored document %s: %w", docID, err)
	}
	unlock()
	if e.indexer != nil {
		if err := e.indexer.Delete(ctx, docID); err != nil {
			e.logger.Warn("lexical delete failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	e.logger.Debug("document removed", zap.String("doc_id", docID))
	return nil
}

func (e *Engine) unplace(ctx context.Context, docID string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.index.Lookup(docID); !ok {
		return fmt.Errorf("document %s: %w", docID, models.ErrNotFound)
	}
	if err := e.index.Remove(ctx, docID); err != nil {
		return fmt.Errorf("remove %s: %w", docID, err)
	}
	if err := e.clusters.Detach(docID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("detach %s: %w", docID, err)
	}
	return nil
}
