// Package cluster groups documents by centroid similarity and retrains the grouping with k-means.
package cluster

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// DefaultThreshold is the cosine similarity a document needs to join an existing cluster.
const DefaultThreshold = 0.75

// Assignment is the outcome of placing a document.
type Assignment struct {
	ClusterID  uint64
	Similarity float64
	// Created is set when the document opened a new singleton cluster.
	Created bool
	// Unchanged is set when the document was already a member with an identical embedding.
	Unchanged bool
}

// Point is a document embedding handed to Retrain.
type Point struct {
	DocID  string
	Vector []float32
}

type group struct {
	id       uint64
	centroid []float32
	members  map[string]struct{}
}

// Store keeps every document in exactly one cluster. Centroids are unit length.
type Store struct {
	dimensions int
	nextID     uint64
	groups     map[uint64]*group
	docGroup   map[string]uint64
	docVec     map[string][]float32

	// touched records documents assigned or detached while a retrain is computing.
	retraining bool
	touched    map[string]struct{}

	seed          int64
	maxIterations int
	tolerance     float64
	logger        *zap.Logger
	mu            sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for retrain diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithSeed fixes the k-means++ seed so retraining is reproducible.
func WithSeed(seed int64) Option {
	return func(s *Store) {
		s.seed = seed
	}
}

// WithMaxIterations bounds the Lloyd iterations of a retrain.
func WithMaxIterations(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithTolerance sets the centroid shift below which retraining stops early.
func WithTolerance(tol float64) Option {
	return func(s *Store) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// NewStore creates an empty store for embeddings of the given dimension.
func NewStore(dimensions int, opts ...Option) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	s := &Store{
		dimensions:    dimensions,
		groups:        make(map[uint64]*group),
		docGroup:      make(map[string]uint64),
		docVec:        make(map[string][]float32),
		seed:          42,
		maxIterations: 50,
		tolerance:     1e-4,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Dimensions returns the embedding length the store accepts.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Assign places docID in the most similar cluster if its similarity reaches threshold,
// otherwise in a new singleton cluster. Ties go to the lowest cluster id. A document that
// is already a member is detached first, unless its embedding is unchanged.
func (s *Store) Assign(docID string, embedding []float32, threshold float64) (Assignment, error) {
	if len(embedding) != s.dimensions {
		return Assignment{}, fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(embedding), s.dimensions)
	}
	vec := vector.Normalize(embedding)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gid, ok := s.docGroup[docID]; ok {
		if equalVectors(s.docVec[docID], vec) {
			g := s.groups[gid]
			return Assignment{
				ClusterID:  gid,
				Similarity: vector.CosineSimilarity(g.centroid, vec),
				Unchanged:  true,
			}, nil
		}
		s.detachLocked(docID)
	}
	if s.retraining {
		s.touched[docID] = struct{}{}
	}
	return s.assignLocked(docID, vec, threshold), nil
}

func (s *Store) assignLocked(docID string, vec []float32, threshold float64) Assignment {
	best, bestSim, found := s.nearestLocked(vec)
	if found && bestSim >= threshold {
		g := s.groups[best]
		g.members[docID] = struct{}{}
		n := float32(len(g.members))
		for i := range g.centroid {
			g.centroid[i] += (vec[i] - g.centroid[i]) / n
		}
		g.centroid = vector.Normalize(g.centroid)
		s.docGroup[docID] = best
		s.docVec[docID] = vec
		return Assignment{ClusterID: best, Similarity: bestSim}
	}

	id := s.nextID
	s.nextID++
	centroid := make([]float32, len(vec))
	copy(centroid, vec)
	s.groups[id] = &group{id: id, centroid: centroid, members: map[string]struct{}{docID: {}}}
	s.docGroup[docID] = id
	s.docVec[docID] = vec
	return Assignment{ClusterID: id, Similarity: 1, Created: true}
}

func (s *Store) nearestLocked(vec []float32) (uint64, float64, bool) {
	var (
		best    uint64
		bestSim float64
		found   bool
	)
	for id, g := range s.groups {
		sim := vector.CosineSimilarity(g.centroid, vec)
		if !found || sim > bestSim || (sim == bestSim && id < best) {
			best, bestSim, found = id, sim, true
		}
	}
	return best, bestSim, found
}

// Detach removes docID from its cluster. The cluster is dropped when it becomes empty,
// otherwise its centroid is recomputed from the remaining members.
func (s *Store) Detach(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docGroup[docID]; !ok {
		return fmt.Errorf("%w: document %s has no cluster", models.ErrNotFound, docID)
	}
	s.detachLocked(docID)
	if s.retraining {
		s.touched[docID] = struct{}{}
	}
	return nil
}

func (s *Store) detachLocked(docID string) {
	gid := s.docGroup[docID]
	g := s.groups[gid]
	delete(s.docGroup, docID)
	delete(s.docVec, docID)
	delete(g.members, docID)
	if len(g.members) == 0 {
		delete(s.groups, gid)
		return
	}
	g.centroid = s.meanLocked(g.members)
}

func (s *Store) meanLocked(members map[string]struct{}) []float32 {
	sum := make([]float32, s.dimensions)
	for doc := range members {
		for i, v := range s.docVec[doc] {
			sum[i] += v
		}
	}
	n := float32(len(members))
	for i := range sum {
		sum[i] /= n
	}
	return vector.Normalize(sum)
}

// ClusterOf returns the cluster holding docID.
func (s *Store) ClusterOf(docID string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.docGroup[docID]
	return id, ok
}

// MembersOf returns the sorted members of a cluster, or an empty slice for an unknown id.
func (s *Store) MembersOf(clusterID uint64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[clusterID]
	if !ok {
		return []string{}
	}
	return sortedMembers(g.members)
}

// Centroid returns a copy of a cluster's centroid.
func (s *Store) Centroid(clusterID uint64) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[clusterID]
	if !ok {
		return nil, fmt.Errorf("%w: cluster %d", models.ErrNotFound, clusterID)
	}
	out := make([]float32, len(g.centroid))
	copy(out, g.centroid)
	return out, nil
}

// SimilarClusters returns up to limit other clusters ordered by centroid similarity,
// highest first, ties by lower id. A non-positive limit returns all of them.
func (s *Store) SimilarClusters(clusterID uint64, limit int) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[clusterID]
	if !ok {
		return nil, fmt.Errorf("%w: cluster %d", models.ErrNotFound, clusterID)
	}
	type scored struct {
		id  uint64
		sim float64
	}
	others := make([]scored, 0, len(s.groups)-1)
	for id, other := range s.groups {
		if id == clusterID {
			continue
		}
		others = append(others, scored{id: id, sim: vector.CosineSimilarity(g.centroid, other.centroid)})
	}
	sort.Slice(others, func(i, j int) bool {
		if others[i].sim != others[j].sim {
			return others[i].sim > others[j].sim
		}
		return others[i].id < others[j].id
	})
	if limit > 0 && limit < len(others) {
		others = others[:limit]
	}
	out := make([]uint64, len(others))
	for i, o := range others {
		out[i] = o.id
	}
	return out, nil
}

// Clusters summarizes every cluster in id order. The representative is the member closest
// to the centroid, ties by lower document id.
func (s *Store) Clusters() []models.ClusterSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.ClusterSummary, 0, len(ids))
	for _, id := range ids {
		g := s.groups[id]
		var (
			rep     string
			repDist float64
		)
		for _, doc := range sortedMembers(g.members) {
			d := vector.SquaredL2(g.centroid, s.docVec[doc])
			if rep == "" || d < repDist {
				rep, repDist = doc, d
			}
		}
		out = append(out, models.ClusterSummary{ID: id, Size: uint32(len(g.members)), Representative: rep})
	}
	return out
}

// Count returns the number of clusters.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

// Documents returns the number of clustered documents.
func (s *Store) Documents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docGroup)
}

func sortedMembers(members map[string]struct{}) []string {
	out := make([]string, 0, len(members))
	for doc := range members {
		out = append(out, doc)
	}
	sort.Strings(out)
	return out
}

func equalVectors(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
