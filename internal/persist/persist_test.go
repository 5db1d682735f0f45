package persist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cluster"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

func openManager(t *testing.T, dir string, opts ...Option) *Manager {
	t.Helper()
	m, err := Open(dir, append([]Option{WithDebounce(0), WithRetry(time.Millisecond, 1)}, opts...)...)
	require.NoError(t, err)
	return m
}

func populated(t *testing.T) (*vector.FlatIndex, *cluster.Store) {
	t.Helper()
	ctx := context.Background()
	index, err := vector.NewFlatIndex(2)
	require.NoError(t, err)
	store, err := cluster.NewStore(2)
	require.NoError(t, err)
	docs := map[string][]float32{
		"cats":   {1, 0},
		"dogs":   {0.8, 0.6},
		"stocks": {0, 1},
	}
	for _, id := range []string{"cats", "dogs", "stocks"} {
		_, err := index.Add(ctx, id, docs[id])
		require.NoError(t, err)
		_, err = store.Assign(id, docs[id], 0.75)
		require.NoError(t, err)
	}
	require.NoError(t, index.Remove(ctx, "stocks"))
	require.NoError(t, store.Detach("stocks"))
	return index, store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	index, store := populated(t)

	m := openManager(t, dir)
	require.NoError(t, m.Save(index.Snapshot(), store.Snapshot()))
	require.NoError(t, m.Close())

	m = openManager(t, dir)
	defer m.Close()
	res, err := m.Load(2)
	require.NoError(t, err)
	assert.False(t, res.Rebuild)
	assert.False(t, res.Fresh)

	assert.Equal(t, index.Entries(), res.Index.Entries())
	assert.Equal(t, index.NextID(), res.Index.NextID())
	assert.Equal(t, uint64(3), res.Index.NextID())
	assert.Equal(t, store.Count(), res.Clusters.Count())
	assert.Equal(t, store.Snapshot().NextID, res.Clusters.Snapshot().NextID)

	cid, ok := res.Clusters.ClusterOf("dogs")
	require.True(t, ok)
	assert.Equal(t, []string{"cats", "dogs"}, res.Clusters.MembersOf(cid))
	_, ok = res.Index.Lookup("stocks")
	assert.False(t, ok)
}

func TestLoadFresh(t *testing.T) {
	m := openManager(t, t.TempDir())
	defer m.Close()

	res, err := m.Load(4)
	require.NoError(t, err)
	assert.True(t, res.Fresh)
	assert.False(t, res.Rebuild)
	assert.Equal(t, 0, res.Index.Size())
	assert.Equal(t, 0, res.Clusters.Count())
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), []byte("not msgpack at all"), 0644))

	m := openManager(t, dir)
	defer m.Close()
	res, err := m.Load(2)
	require.NoError(t, err)
	assert.True(t, res.Rebuild)
	assert.ErrorIs(t, res.Reason, models.ErrPersistenceCorrupt)
	assert.Equal(t, 0, res.Index.Size())
}

func TestLoadVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	index, _ := populated(t)
	require.NoError(t, writeAtomic(dir, VectorsFile, &vectorsFile{FormatVersion: FormatVersion + 1, Snapshot: index.Snapshot()}))

	m := openManager(t, dir)
	defer m.Close()
	res, err := m.Load(2)
	require.NoError(t, err)
	assert.True(t, res.Rebuild)
	assert.ErrorIs(t, res.Reason, models.ErrPersistenceCorrupt)
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	index, store := populated(t)
	m := openManager(t, dir)
	require.NoError(t, m.Save(index.Snapshot(), store.Snapshot()))
	require.NoError(t, m.Close())

	m = openManager(t, dir)
	defer m.Close()
	res, err := m.Load(3)
	require.NoError(t, err)
	assert.True(t, res.Rebuild)
	assert.ErrorIs(t, res.Reason, models.ErrDimensionMismatch)
	assert.Equal(t, 3, res.Index.Dimensions())
}

func TestLoadMissingClusterSnapshot(t *testing.T) {
	dir := t.TempDir()
	index, store := populated(t)
	m := openManager(t, dir)
	require.NoError(t, m.Save(index.Snapshot(), store.Snapshot()))
	require.NoError(t, m.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, ClustersFile)))

	m = openManager(t, dir)
	defer m.Close()
	res, err := m.Load(2)
	require.NoError(t, err)
	assert.False(t, res.Rebuild)
	assert.Equal(t, 2, res.Index.Size())
	assert.Equal(t, 0, res.Clusters.Count())
}

func TestOpenLockContention(t *testing.T) {
	dir := t.TempDir()
	m := openManager(t, dir)
	defer m.Close()

	_, err := Open(dir, WithLockTimeout(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use")
}

func TestScheduleWritesInBackground(t *testing.T) {
	dir := t.TempDir()
	index, store := populated(t)

	m := openManager(t, dir)
	m.Start(func() (*vector.Snapshot, *cluster.Snapshot) {
		return index.Snapshot(), store.Snapshot()
	})
	for i := 0; i < 5; i++ {
		m.Schedule()
	}
	require.Eventually(t, func() bool { return m.Saves() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Close())
	assert.Zero(t, m.Failures())

	_, err := os.Stat(filepath.Join(dir, VectorsFile))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ClustersFile))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestCloseFlushesAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	index, store := populated(t)

	m := openManager(t, dir)
	m.Start(func() (*vector.Snapshot, *cluster.Snapshot) {
		return index.Snapshot(), store.Snapshot()
	})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, uint64(1), m.Saves())

	m = openManager(t, dir)
	defer m.Close()
	res, err := m.Load(2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Index.Size())
}
