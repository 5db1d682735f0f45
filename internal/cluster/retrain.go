package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// Retrain recomputes the clustering from points with k-means. The computation runs without
// holding the store lock; the result is swapped in under a short exclusive lock. k is clamped
// to the number of points and empty clusters are discarded. Documents assigned while the
// computation ran are re-assigned against the new centroids with threshold; documents
// detached meanwhile are dropped. New clusters receive fresh ids. On failure the previous
// clustering is kept and the error wraps models.ErrRetrainFailure.
func (s *Store) Retrain(ctx context.Context, points []Point, k int, threshold float64) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no points", models.ErrRetrainFailure)
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", models.ErrRetrainFailure, k)
	}
	if k > len(points) {
		k = len(points)
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })
	vecs := make([][]float32, len(sorted))
	for i, p := range sorted {
		if len(p.Vector) != s.dimensions {
			return fmt.Errorf("%w: point %s: %w", models.ErrRetrainFailure, p.DocID, models.ErrDimensionMismatch)
		}
		vecs[i] = vector.Normalize(p.Vector)
	}

	s.mu.Lock()
	if s.retraining {
		s.mu.Unlock()
		return fmt.Errorf("%w: retrain already in progress", models.ErrRetrainFailure)
	}
	s.retraining = true
	s.touched = make(map[string]struct{})
	s.mu.Unlock()

	finish := func() {
		s.retraining = false
		s.touched = nil
	}

	assign, centroids, err := kmeans(ctx, vecs, k, s.maxIterations, s.tolerance, rand.New(rand.NewSource(s.seed)))
	if err != nil {
		s.mu.Lock()
		finish()
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", models.ErrRetrainFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer finish()

	layout := make([]map[string]struct{}, len(centroids))
	for c := range layout {
		layout[c] = make(map[string]struct{})
	}
	newVec := make(map[string][]float32, len(sorted))
	for i, p := range sorted {
		_, live := s.docGroup[p.DocID]
		if _, moved := s.touched[p.DocID]; moved || !live {
			continue
		}
		layout[assign[i]][p.DocID] = struct{}{}
		newVec[p.DocID] = vecs[i]
	}

	// Live members missing from the new layout get placed after the swap.
	pending := make([]string, 0)
	for doc := range s.docGroup {
		if _, ok := newVec[doc]; !ok {
			pending = append(pending, doc)
		}
	}
	sort.Strings(pending)
	pendingVec := make(map[string][]float32, len(pending))
	for _, doc := range pending {
		pendingVec[doc] = s.docVec[doc]
	}

	groups := make(map[uint64]*group, len(layout))
	docGroup := make(map[string]uint64, len(s.docGroup))
	for c, members := range layout {
		if len(members) == 0 {
			continue
		}
		id := s.nextID
		s.nextID++
		groups[id] = &group{id: id, members: members, centroid: centroids[c]}
		for doc := range members {
			docGroup[doc] = id
		}
	}
	s.groups = groups
	s.docGroup = docGroup
	s.docVec = newVec
	for _, g := range s.groups {
		g.centroid = s.meanLocked(g.members)
	}
	for _, doc := range pending {
		s.assignLocked(doc, pendingVec[doc], threshold)
	}

	s.logger.Info("cluster retrain complete",
		zap.Int("points", len(sorted)),
		zap.Int("k", k),
		zap.Int("clusters", len(s.groups)),
		zap.Int("reassigned", len(pending)))
	return nil
}
