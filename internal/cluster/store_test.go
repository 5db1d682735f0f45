package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

func newTestStore(t *testing.T, dims int) *Store {
	t.Helper()
	s, err := NewStore(dims)
	require.NoError(t, err)
	return s
}

func TestStore_AssignJoinsOrCreates(t *testing.T) {
	s := newTestStore(t, 2)

	a, err := s.Assign("d1", []float32{1, 0}, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, a.Created)

	b, err := s.Assign("d2", []float32{0.95, 0.05}, DefaultThreshold)
	require.NoError(t, err)
	assert.False(t, b.Created)
	assert.Equal(t, a.ClusterID, b.ClusterID)
	assert.GreaterOrEqual(t, b.Similarity, DefaultThreshold)

	c, err := s.Assign("d3", []float32{0, 1}, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, c.Created)
	assert.NotEqual(t, a.ClusterID, c.ClusterID)

	assert.Equal(t, 2, s.Count())
	assert.Equal(t, []string{"d1", "d2"}, s.MembersOf(a.ClusterID))
}

func TestStore_ThresholdIsInclusive(t *testing.T) {
	s := newTestStore(t, 2)
	_, _ = s.Assign("a", []float32{1, 0}, 1.0)
	got, err := s.Assign("b", []float32{3, 0}, 1.0)
	require.NoError(t, err)
	assert.False(t, got.Created)
}

func TestStore_TiesGoToLowestClusterID(t *testing.T) {
	s := newTestStore(t, 2)
	first, _ := s.Assign("a", []float32{1, 0}, 0.99)
	second, _ := s.Assign("b", []float32{0, 1}, 0.99)
	require.NotEqual(t, first.ClusterID, second.ClusterID)

	got, err := s.Assign("c", []float32{1, 1}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, first.ClusterID, got.ClusterID)
}

func TestStore_CentroidStaysUnitLength(t *testing.T) {
	s := newTestStore(t, 3)
	for i, v := range [][]float32{{1, 0, 0}, {0.9, 0.3, 0}, {0.8, 0, 0.4}} {
		_, err := s.Assign(fmt.Sprintf("d%d", i), v, 0.5)
		require.NoError(t, err)
	}
	require.Equal(t, 1, s.Count())
	c, err := s.Centroid(s.Clusters()[0].ID)
	require.NoError(t, err)
	var norm float64
	for _, v := range c {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestStore_ReassignSameEmbeddingIsIdempotent(t *testing.T) {
	s := newTestStore(t, 2)
	first, _ := s.Assign("a", []float32{1, 0}, DefaultThreshold)
	again, err := s.Assign("a", []float32{2, 0}, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, first.ClusterID, again.ClusterID)
	assert.Equal(t, 1, s.Count())
}

func TestStore_ReassignChangedEmbeddingMoves(t *testing.T) {
	s := newTestStore(t, 2)
	first, _ := s.Assign("a", []float32{1, 0}, DefaultThreshold)
	moved, err := s.Assign("a", []float32{0, 1}, DefaultThreshold)
	require.NoError(t, err)
	assert.NotEqual(t, first.ClusterID, moved.ClusterID)
	assert.Equal(t, 1, s.Count(), "emptied cluster is dropped")
	assert.Empty(t, s.MembersOf(first.ClusterID))
}

func TestStore_Detach(t *testing.T) {
	s := newTestStore(t, 2)
	a, _ := s.Assign("a", []float32{1, 0}, 0.5)
	_, _ = s.Assign("b", []float32{0.8, 0.6}, 0.5)

	require.NoError(t, s.Detach("b"))
	c, err := s.Centroid(a.ClusterID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c[0], 1e-6, "centroid recomputed from remaining member")

	require.NoError(t, s.Detach("a"))
	assert.Equal(t, 0, s.Count())
	require.ErrorIs(t, s.Detach("a"), models.ErrNotFound)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := newTestStore(t, 3)
	_, err := s.Assign("a", []float32{1, 0}, DefaultThreshold)
	require.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestStore_SimilarClusters(t *testing.T) {
	s := newTestStore(t, 2)
	base, _ := s.Assign("base", []float32{1, 0}, 0.99)
	near, _ := s.Assign("near", []float32{0.9, 0.3}, 0.99)
	far, _ := s.Assign("far", []float32{-1, 0}, 0.99)

	got, err := s.SimilarClusters(base.ClusterID, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{near.ClusterID, far.ClusterID}, got)

	got, err = s.SimilarClusters(base.ClusterID, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{near.ClusterID}, got)

	_, err = s.SimilarClusters(999, 5)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_ClustersRepresentative(t *testing.T) {
	s := newTestStore(t, 2)
	_, _ = s.Assign("edge", []float32{1, 0}, 0.5)
	_, _ = s.Assign("middle", []float32{0.8, 0.6}, 0.5)
	_, _ = s.Assign("other", []float32{0.6, 0.8}, 0.5)

	summaries := s.Clusters()
	require.Len(t, summaries, 1)
	assert.Equal(t, uint32(3), summaries[0].Size)
	assert.Equal(t, "middle", summaries[0].Representative)
}

func TestStore_Exclusivity(t *testing.T) {
	s := newTestStore(t, 2)
	vecs := [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}, {1, 0.1}, {0.1, 1}}
	for i, v := range vecs {
		_, err := s.Assign(fmt.Sprintf("d%d", i), v, DefaultThreshold)
		require.NoError(t, err)
	}
	seen := map[string]int{}
	for _, c := range s.Clusters() {
		for _, m := range s.MembersOf(c.ID) {
			seen[m]++
		}
	}
	assert.Len(t, seen, len(vecs))
	for doc, n := range seen {
		assert.Equal(t, 1, n, doc)
	}
}

func TestStore_SnapshotRestore(t *testing.T) {
	s := newTestStore(t, 2)
	vecs := map[string][]float32{"a": {1, 0}, "b": {0.9, 0.1}, "c": {0, 1}}
	for _, id := range []string{"a", "b", "c"} {
		_, _ = s.Assign(id, vecs[id], DefaultThreshold)
	}
	snap := s.Snapshot()

	restored := newTestStore(t, 2)
	err := restored.Restore(snap, func(doc string) ([]float32, bool) {
		v, ok := vecs[doc]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, s.Clusters(), restored.Clusters())

	next, _ := restored.Assign("d", []float32{-1, 0}, DefaultThreshold)
	assert.Equal(t, snap.NextID, next.ClusterID, "cluster ids continue after restore")

	err = newTestStore(t, 2).Restore(snap, func(string) ([]float32, bool) { return nil, false })
	require.ErrorIs(t, err, models.ErrPersistenceCorrupt)
}

func TestStore_RetrainFreshIDs(t *testing.T) {
	s := newTestStore(t, 2)
	points := []Point{
		{"a1", []float32{1, 0}}, {"a2", []float32{0.98, 0.2}},
		{"b1", []float32{0, 1}}, {"b2", []float32{0.2, 0.98}},
	}
	for _, p := range points {
		_, _ = s.Assign(p.DocID, p.Vector, 0.999)
	}
	before := s.Snapshot().NextID

	require.NoError(t, s.Retrain(context.Background(), points, 2, DefaultThreshold))
	assert.Equal(t, 2, s.Count())

	a, _ := s.ClusterOf("a1")
	a2, _ := s.ClusterOf("a2")
	b, _ := s.ClusterOf("b1")
	assert.Equal(t, a, a2)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, a, before)
	assert.GreaterOrEqual(t, b, before)
}

func TestStore_RetrainDeterministic(t *testing.T) {
	points := []Point{
		{"p1", []float32{1, 0, 0}}, {"p2", []float32{0.9, 0.1, 0}},
		{"p3", []float32{0, 1, 0}}, {"p4", []float32{0, 0.9, 0.1}},
		{"p5", []float32{0, 0, 1}}, {"p6", []float32{0.1, 0, 0.9}},
	}
	layout := func() [][]string {
		s := newTestStore(t, 3)
		for _, p := range points {
			_, _ = s.Assign(p.DocID, p.Vector, DefaultThreshold)
		}
		require.NoError(t, s.Retrain(context.Background(), points, 3, DefaultThreshold))
		var out [][]string
		for _, c := range s.Clusters() {
			out = append(out, s.MembersOf(c.ID))
		}
		return out
	}
	assert.Equal(t, layout(), layout())
}

func TestStore_RetrainClampsKAndFailsCleanly(t *testing.T) {
	s := newTestStore(t, 2)
	_, _ = s.Assign("a", []float32{1, 0}, DefaultThreshold)
	_, _ = s.Assign("b", []float32{0, 1}, DefaultThreshold)
	before := s.Clusters()

	err := s.Retrain(context.Background(), nil, 2, DefaultThreshold)
	require.ErrorIs(t, err, models.ErrRetrainFailure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Retrain(ctx, []Point{{"a", []float32{1, 0}}, {"b", []float32{0, 1}}}, 2, DefaultThreshold)
	require.ErrorIs(t, err, models.ErrRetrainFailure)
	assert.Equal(t, before, s.Clusters(), "prior clustering kept on failure")

	require.NoError(t, s.Retrain(context.Background(), []Point{{"a", []float32{1, 0}}, {"b", []float32{0, 1}}}, 10, DefaultThreshold))
	assert.Equal(t, 2, s.Count())
}

func TestStore_RetrainPlacesMembersMissingFromPoints(t *testing.T) {
	s := newTestStore(t, 2)
	_, _ = s.Assign("a", []float32{1, 0}, DefaultThreshold)
	_, _ = s.Assign("late", []float32{0, 1}, DefaultThreshold)

	require.NoError(t, s.Retrain(context.Background(), []Point{{"a", []float32{1, 0}}, {"gone", []float32{0.5, 0.5}}}, 1, DefaultThreshold))

	_, ok := s.ClusterOf("late")
	assert.True(t, ok, "live member outside the point set is re-assigned")
	_, ok = s.ClusterOf("gone")
	assert.False(t, ok, "points that are not live members are dropped")
	assert.Equal(t, 2, s.Documents())
}

// clusteredPoints draws n points around k random unit centers.
func clusteredPoints(rng *rand.Rand, prefix string, n, k, dims int) []Point {
	centers := make([][]float64, k)
	for c := range centers {
		centers[c] = make([]float64, dims)
		for i := range centers[c] {
			centers[c][i] = rng.NormFloat64()
		}
	}
	points := make([]Point, n)
	for i := range points {
		center := centers[rng.Intn(k)]
		v := make([]float32, dims)
		for j := range v {
			v[j] = float32(center[j] + 0.15*rng.NormFloat64())
		}
		points[i] = Point{DocID: fmt.Sprintf("%s%d", prefix, i), Vector: v}
	}
	return points
}

func TestStore_RetrainWithConcurrentAssignAndDetach(t *testing.T) {
	if testing.Short() {
		t.Skip("large retrain")
	}
	const (
		dims     = 48
		k        = 40
		detached = 100
		added    = 100
	)
	rng := rand.New(rand.NewSource(7))
	s := newTestStore(t, dims)
	points := clusteredPoints(rng, "d", 6000, k, dims)
	for _, p := range points {
		_, err := s.Assign(p.DocID, p.Vector, 0.5)
		require.NoError(t, err)
	}
	extra := clusteredPoints(rng, "n", added, k, dims)

	start := make(chan struct{})
	retrained := make(chan error, 1)
	go func() {
		<-start
		retrained <- s.Retrain(context.Background(), points, k, 0.5)
	}()

	var wg sync.WaitGroup
	for i := 0; i < detached; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			assert.NoError(t, s.Detach(id))
		}(points[i].DocID)
	}
	for _, p := range extra {
		wg.Add(1)
		go func(p Point) {
			defer wg.Done()
			<-start
			_, err := s.Assign(p.DocID, p.Vector, 0.5)
			assert.NoError(t, err)
		}(p)
	}
	close(start)
	wg.Wait()
	require.NoError(t, <-retrained)

	seen := make(map[string]uint64)
	for _, c := range s.Clusters() {
		members := s.MembersOf(c.ID)
		assert.NotEmpty(t, members, "cluster %d is empty", c.ID)
		assert.Equal(t, int(c.Size), len(members))
		for _, doc := range members {
			prev, dup := seen[doc]
			assert.False(t, dup, "%s is in clusters %d and %d", doc, prev, c.ID)
			seen[doc] = c.ID
		}

		centroid, err := s.Centroid(c.ID)
		require.NoError(t, err)
		var norm float64
		for _, v := range centroid {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
	}

	assert.Len(t, seen, len(points)-detached+added)
	assert.Equal(t, len(seen), s.Documents())
	for i, p := range points {
		cid, ok := s.ClusterOf(p.DocID)
		if i < detached {
			assert.False(t, ok, "%s was detached", p.DocID)
			continue
		}
		require.True(t, ok, "%s lost its cluster", p.DocID)
		assert.Equal(t, seen[p.DocID], cid)
	}
	for _, p := range extra {
		cid, ok := s.ClusterOf(p.DocID)
		require.True(t, ok, "%s assigned during retrain is missing", p.DocID)
		assert.Equal(t, seen[p.DocID], cid)
	}
}
