// Package engine wires the vector index, cluster store, hybrid search coordinator and
// snapshot persistence into one handle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cluster"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/embedding"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/lexical"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/persist"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/search"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/storage"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
	"github.com/INFO-698-InfoSci-Capstone/summiva/pkg/utils"
)

const (
	docLockStripes  = 64
	defaultSimilarK = 5
)

// Deps are the collaborators an Engine runs on. Snapshots is optional; without it the
// index and clusters live in memory and are rebuilt from Documents on every start.
type Deps struct {
	Embedder  embedding.Provider
	Lexical   lexical.Client
	Documents storage.DocumentStore
	Snapshots *persist.Manager
}

// Engine is the retrieval and clustering facade. The Engine owns its dependencies and
// releases them on Close.
type Engine struct {
	cfg         *config.Config
	embedder    embedding.Provider
	lexical     lexical.Client
	indexer     lexical.Indexer
	docs        storage.DocumentStore
	snapshots   *persist.Manager
	index       *vector.FlatIndex
	clusters    *cluster.Store
	coordinator *search.Coordinator
	workers     *semaphore.Weighted
	workerCount int64
	logger      *zap.Logger

	// mu is held shared by mutations spanning index and clusters, and exclusively while
	// taking a snapshot pair, so saved files always agree with each other.
	mu       sync.RWMutex
	docLocks [docLockStripes]sync.Mutex

	retrainMu       sync.Mutex
	retraining      bool
	nextRetrainAt   int
	retrainWG       sync.WaitGroup
	retrains        atomic.Uint64
	retrainFailures atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New restores the index and clusters from snapshots, rebuilds them from the document store
// when the snapshots are unusable, and returns a ready engine.
func New(ctx context.Context, deps Deps, cfg *config.Config, opts ...Option) (*Engine, error) {
	if deps.Embedder == nil || deps.Lexical == nil || deps.Documents == nil {
		return nil, errors.New("engine requires an embedder, a lexical client and a document store")
	}
	if cfg == nil {
		return nil, errors.New("engine requires a config")
	}
	dims := deps.Embedder.Dimensions()
	if cfg.Embedding.Dimensions > 0 && cfg.Embedding.Dimensions != dims {
		return nil, fmt.Errorf("%w: embedder produces %d, config expects %d", models.ErrDimensionMismatch, dims, cfg.Embedding.Dimensions)
	}

	workers := cfg.Engine.Workers
	if workers < 1 {
		workers = 1
	}
	e := &Engine{
		cfg:         cfg,
		embedder:    deps.Embedder,
		lexical:     deps.Lexical,
		docs:        deps.Documents,
		snapshots:   deps.Snapshots,
		workers:     semaphore.NewWeighted(int64(workers)),
		workerCount: int64(workers),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if ix, ok := deps.Lexical.(lexical.Indexer); ok {
		e.indexer = ix
	}

	clusterOpts := []cluster.Option{
		cluster.WithLogger(e.logger.Named("cluster")),
		cluster.WithSeed(cfg.Cluster.Seed),
		cluster.WithMaxIterations(cfg.Cluster.MaxIterations),
		cluster.WithTolerance(cfg.Cluster.Tolerance),
	}
	rebuild, err := e.load(ctx, dims, clusterOpts)
	if err != nil {
		return nil, err
	}
	dirty := rebuild
	if rebuild {
		if err := e.rebuildFromStore(ctx); err != nil {
			return nil, fmt.Errorf("rebuild from document store: %w", err)
		}
	} else {
		n, err := e.reconcile(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile snapshots with document store: %w", err)
		}
		if n > 0 || e.repairClusters() > 0 {
			dirty = true
		}
	}
	e.resyncLexical(ctx)

	e.coordinator = search.NewCoordinator(e.lexical, e.embedder, e.index, search.Options{
		TopKCandidates: cfg.Search.TopKCandidates,
		LexicalTimeout: cfg.Search.LexicalTimeout,
		VectorTimeout:  cfg.Search.VectorTimeout,
	}, search.WithLogger(e.logger.Named("search")), search.WithMetadata(e.metadataOf))

	if e.snapshots != nil {
		e.snapshots.Start(e.snapshotPair)
		e.index.OnMutation(e.snapshots.Schedule)
		if dirty {
			e.snapshots.Schedule()
		}
	}

	e.logger.Info("engine ready",
		zap.Int("documents", e.index.Size()),
		zap.Int("clusters", e.clusters.Count()),
		zap.Int("dimensions", dims),
		zap.Bool("rebuilt", rebuild))
	return e, nil
}

// load restores snapshots and reports whether the structures must be rebuilt.
func (e *Engine) load(ctx context.Context, dims int, clusterOpts []cluster.Option) (bool, error) {
	if e.snapshots == nil {
		index, err := vector.NewFlatIndex(dims)
		if err != nil {
			return false, err
		}
		store, err := cluster.NewStore(dims, clusterOpts...)
		if err != nil {
			return false, err
		}
		e.index, e.clusters = index, store
		return true, nil
	}
	res, err := e.snapshots.Load(dims, clusterOpts...)
	if err != nil {
		return false, err
	}
	e.index, e.clusters = res.Index, res.Clusters
	if res.Rebuild {
		return true, nil
	}
	if e.index.Size() == 0 {
		n, err := e.docs.Count(ctx)
		if err != nil {
			return false, fmt.Errorf("count documents: %w", err)
		}
		return n > 0, nil
	}
	return false, nil
}

func (e *Engine) metadataOf(ctx context.Context, docID string) (map[string]interface{}, error) {
	doc, err := e.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	return doc.Metadata, nil
}

func (e *Engine) snapshotPair() (*vector.Snapshot, *cluster.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Snapshot(), e.clusters.Snapshot()
}

func (e *Engine) lockDoc(docID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	l := &e.docLocks[h.Sum32()%docLockStripes]
	l.Lock()
	return l.Unlock
}

var errClosed = errors.New("engine is closed")

func (e *Engine) acquire(ctx context.Context) error {
	if e.closed.Load() {
		return errClosed
	}
	if err := e.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	if e.closed.Load() {
		e.workers.Release(1)
		return errClosed
	}
	return nil
}

func (e *Engine) release() {
	e.workers.Release(1)
}

// Query runs a hybrid search. Size 0 uses the configured default and sizes above the
// configured maximum are capped; a nil alpha uses the configured default.
func (e *Engine) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", models.ErrInvalidQuery)
	}
	if err := q.Validate(e.cfg.Search.DefaultSize, e.cfg.Search.MaxSize, e.cfg.Search.Alpha()); err != nil {
		return nil, err
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()
	return e.coordinator.Search(ctx, q.Query, q.Size, *q.Alpha, q.Filters)
}

// SimilarDocuments returns up to k stored documents nearest to text whose similarity
// reaches the clustering threshold, most similar first. k 0 means 5.
func (e *Engine) SimilarDocuments(ctx context.Context, text string, k int) ([]models.SimilarDocument, error) {
	text = utils.CollapseWhitespace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", models.ErrInvalidQuery)
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative", models.ErrInvalidQuery)
	}
	if k == 0 {
		k = defaultSimilarK
	}
	if k > e.cfg.Search.MaxSize {
		k = e.cfg.Search.MaxSize
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if n := e.index.Size(); k > n {
		k = n
	}
	if k == 0 {
		return []models.SimilarDocument{}, nil
	}
	neighbors, err := e.index.Search(ctx, emb, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	threshold := e.cfg.Cluster.Threshold()
	out := make([]models.SimilarDocument, 0, len(neighbors))
	for _, n := range neighbors {
		sim := vector.DistanceToSimilarity(n.Distance)
		if sim < threshold {
			continue
		}
		doc, err := e.docs.Get(ctx, n.DocID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.SimilarDocument{DocID: n.DocID, Similarity: sim, Text: doc.Text, Metadata: doc.Metadata})
	}
	return out, nil
}

// ClusterOf returns the cluster holding docID, or models.ErrNotFound.
func (e *Engine) ClusterOf(docID string) (uint64, error) {
	id, ok := e.clusters.ClusterOf(docID)
	if !ok {
		return 0, fmt.Errorf("document %s: %w", docID, models.ErrNotFound)
	}
	return id, nil
}

// MembersOf returns the sorted members of a cluster; empty for unknown ids.
func (e *Engine) MembersOf(clusterID uint64) []string {
	return e.clusters.MembersOf(clusterID)
}

// SimilarClusters returns other clusters by centroid similarity, most similar first.
func (e *Engine) SimilarClusters(clusterID uint64, limit int) ([]uint64, error) {
	return e.clusters.SimilarClusters(clusterID, limit)
}

// Clusters lists every cluster with its size and representative member.
func (e *Engine) Clusters() []models.ClusterSummary {
	return e.clusters.Clusters()
}

// Document returns the stored document.
func (e *Engine) Document(ctx context.Context, docID string) (*models.Document, error) {
	return e.docs.Get(ctx, docID)
}

// Stats returns counters for status reporting.
func (e *Engine) Stats() models.Stats {
	e.retrainMu.Lock()
	running := e.retraining
	e.retrainMu.Unlock()
	stats := models.Stats{
		Documents:       e.index.Size(),
		Clusters:        e.clusters.Count(),
		NextInternalID:  e.index.NextID(),
		Dimensions:      e.index.Dimensions(),
		RetrainRunning:  running,
		Retrains:        e.retrains.Load(),
		RetrainFailures: e.retrainFailures.Load(),
	}
	if e.snapshots != nil {
		stats.SnapshotSaves = e.snapshots.Saves()
		stats.SnapshotFailures = e.snapshots.Failures()
	}
	return stats
}

// Close waits for in-flight operations and a running retrain, writes a final snapshot and
// releases every dependency.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.retrainMu.Lock()
		e.closed.Store(true)
		e.retrainMu.Unlock()
		_ = e.workers.Acquire(context.Background(), e.workerCount)
		defer e.workers.Release(e.workerCount)
		e.retrainWG.Wait()
		var errs []error
		if e.snapshots != nil {
			if err := e.snapshots.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close snapshots: %w", err))
			}
		}
		if c, ok := e.lexical.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close lexical index: %w", err))
			}
		}
		if err := e.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close embedder: %w", err))
		}
		if err := e.docs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close document store: %w", err))
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
