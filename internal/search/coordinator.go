package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/embedding"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/lexical"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// Options holds candidate depth and per-branch budgets.
type Options struct {
	TopKCandidates int
	LexicalTimeout time.Duration
	VectorTimeout  time.Duration
}

// Coordinator runs the lexical and vector branches of a hybrid query concurrently and
// fuses their answers.
type Coordinator struct {
	lexical  lexical.Client
	embedder embedding.Provider
	index    vector.VectorIndex
	metadata MetadataFunc
	opts     Options
	logger   *zap.Logger
}

// MetadataFunc returns the metadata stored for a document. It is consulted to apply
// filters to vector candidates.
type MetadataFunc func(ctx context.Context, docID string) (map[string]interface{}, error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for degraded-query warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithMetadata sets the lookup used to filter vector candidates. Without it, filtered
// queries fail the vector branch.
func WithMetadata(fn MetadataFunc) Option {
	return func(c *Coordinator) {
		c.metadata = fn
	}
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(lex lexical.Client, embedder embedding.Provider, index vector.VectorIndex, opts Options, options ...Option) *Coordinator {
	if opts.LexicalTimeout <= 0 {
		opts.LexicalTimeout = 3 * time.Second
	}
	if opts.VectorTimeout <= 0 {
		opts.VectorTimeout = 3 * time.Second
	}
	c := &Coordinator{lexical: lex, embedder: embedder, index: index, opts: opts}
	for _, o := range options {
		o(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

type branchResult struct {
	source  models.Source
	lexical []lexical.Hit
	vector  []vector.Neighbor
	err     error
}

// Search answers a hybrid query restricted to documents matching filters. If one branch
// fails or times out the response carries the other branch's results and is marked
// Degraded; if both fail the error wraps models.ErrBothBackendsUnavailable. Caller
// cancellation returns ctx.Err().
func (c *Coordinator) Search(ctx context.Context, text string, size int, alpha float64, filters models.Filters) (*models.SearchResponse, error) {
	start := time.Now()
	if text == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrInvalidQuery)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive", models.ErrInvalidQuery)
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be within [0,1], got %v", models.ErrInvalidQuery, alpha)
	}
	candidates := size
	if c.opts.TopKCandidates > candidates {
		candidates = c.opts.TopKCandidates
	}

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan branchResult, 2)

	go func() {
		lctx, lcancel := context.WithTimeout(branchCtx, c.opts.LexicalTimeout)
		defer lcancel()
		hits, err := c.lexical.Search(lctx, text, candidates, filters)
		results <- branchResult{source: models.SourceLexical, lexical: hits, err: classify(err, lctx, ctx)}
	}()
	go func() {
		vctx, vcancel := context.WithTimeout(branchCtx, c.opts.VectorTimeout)
		defer vcancel()
		neighbors, err := c.searchVector(vctx, text, candidates, filters)
		results <- branchResult{source: models.SourceVector, vector: neighbors, err: classify(err, vctx, ctx)}
	}()

	// Both branches share the larger budget; a backend that ignores its context is
	// abandoned once the deadline passes.
	deadline := c.opts.LexicalTimeout
	if c.opts.VectorTimeout > deadline {
		deadline = c.opts.VectorTimeout
	}
	timer := time.NewTimer(deadline + 50*time.Millisecond)
	defer timer.Stop()

	var lex, vec *branchResult
	for lex == nil || vec == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			timeout := fmt.Errorf("no answer within %s: %w", deadline, models.ErrBackendTimeout)
			if lex == nil {
				lex = &branchResult{source: models.SourceLexical, err: timeout}
			}
			if vec == nil {
				vec = &branchResult{source: models.SourceVector, err: timeout}
			}
		case r := <-results:
			if r.source == models.SourceLexical {
				lex = &r
			} else {
				vec = &r
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{Query: text}
	if lex.err != nil && vec.err != nil {
		return nil, fmt.Errorf("%w: lexical: %w; vector: %w", models.ErrBothBackendsUnavailable, lex.err, vec.err)
	}
	for _, r := range []*branchResult{lex, vec} {
		if r.err != nil {
			resp.Degraded = true
			resp.FailedSources = append(resp.FailedSources, r.source)
			c.logger.Warn("hybrid search degraded",
				zap.String("source", string(r.source)),
				zap.String("query", text),
				zap.Error(r.err))
		}
	}

	resp.Results = Fuse(NormalizeLexicalScores(lex.lexical), VectorSimilarities(vec.vector), alpha, size)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func (c *Coordinator) searchVector(ctx context.Context, text string, k int, filters models.Filters) ([]vector.Neighbor, error) {
	if len(filters) > 0 && c.metadata == nil {
		return nil, errors.New("vector search: filters need a metadata lookup")
	}
	emb, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	depth := k
	if len(filters) > 0 {
		// Filtering happens after ranking, so rank everything.
		if n := c.index.Size(); n > depth {
			depth = n
		}
	}
	neighbors, err := c.index.Search(ctx, emb, depth)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(filters) == 0 {
		return neighbors, nil
	}
	kept := neighbors[:0]
	for _, n := range neighbors {
		if len(kept) == k {
			break
		}
		md, err := c.metadata(ctx, n.DocID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", n.DocID, err)
		}
		if filters.Match(md) {
			kept = append(kept, n)
		}
	}
	return kept, nil
}

// classify reports an expired branch budget as models.ErrBackendTimeout unless the
// caller itself gave up.
func classify(err error, branch, parent context.Context) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrBackendTimeout) {
		return err
	}
	if parent.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || branch.Err() == context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrBackendTimeout, err)
	}
	return err
}
