package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cluster"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// LoadResult holds the restored structures. When Rebuild is set the structures are empty
// and Reason says why the snapshots were discarded; the caller repopulates them from the
// document store.
type LoadResult struct {
	Index    *vector.FlatIndex
	Clusters *cluster.Store
	Rebuild  bool
	Reason   error
	// Fresh is set when no snapshot existed.
	Fresh bool
}

// Load restores the index and cluster store from the snapshot directory. Missing files are
// a clean start. Corrupt files, an unknown format version or a dimension mismatch are not
// fatal: Load returns empty structures with Rebuild set.
func (m *Manager) Load(dimensions int, clusterOpts ...cluster.Option) (*LoadResult, error) {
	index, store, err := emptyPair(dimensions, clusterOpts)
	if err != nil {
		return nil, err
	}
	res := &LoadResult{Index: index, Clusters: store}

	var vf vectorsFile
	err = readFile(filepath.Join(m.dir, VectorsFile), &vf)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Fresh = true
		return res, nil
	case err != nil:
		return m.discard(res, dimensions, clusterOpts, err)
	}
	if err := index.Restore(vf.Snapshot); err != nil {
		return m.discard(res, dimensions, clusterOpts, err)
	}

	var cf clustersFile
	err = readFile(filepath.Join(m.dir, ClustersFile), &cf)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		m.logger.Warn("cluster snapshot missing, clusters will be rebuilt from the index")
		return res, nil
	case err != nil:
		return m.discard(res, dimensions, clusterOpts, err)
	}
	lookup := func(docID string) ([]float32, bool) {
		id, ok := index.Lookup(docID)
		if !ok {
			return nil, false
		}
		vec, err := index.Reconstruct(id)
		return vec, err == nil
	}
	if err := store.Restore(cf.Snapshot, lookup); err != nil {
		return m.discard(res, dimensions, clusterOpts, err)
	}

	m.logger.Info("snapshots loaded",
		zap.Int("vectors", index.Size()),
		zap.Int("clusters", store.Count()),
		zap.Uint64("next_internal_id", index.NextID()))
	return res, nil
}

func (m *Manager) discard(res *LoadResult, dimensions int, clusterOpts []cluster.Option, reason error) (*LoadResult, error) {
	m.logger.Warn("discarding snapshots, rebuilding from document store", zap.Error(reason))
	index, store, err := emptyPair(dimensions, clusterOpts)
	if err != nil {
		return nil, err
	}
	res.Index = index
	res.Clusters = store
	res.Rebuild = true
	res.Reason = reason
	return res, nil
}

func emptyPair(dimensions int, clusterOpts []cluster.Option) (*vector.FlatIndex, *cluster.Store, error) {
	index, err := vector.NewFlatIndex(dimensions)
	if err != nil {
		return nil, nil, fmt.Errorf("create index: %w", err)
	}
	store, err := cluster.NewStore(dimensions, clusterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create cluster store: %w", err)
	}
	return index, store, nil
}
