package cluster

import (
	"fmt"
	"sort"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// Snapshot is the persisted form of a store. Member embeddings are not stored; they are
// looked up from the vector index on Restore.
type Snapshot struct {
	Dimensions int            `msgpack:"dims"`
	NextID     uint64         `msgpack:"next_id"`
	Clusters   []ClusterState `msgpack:"clusters"`
}

// ClusterState is one persisted cluster.
type ClusterState struct {
	ID       uint64    `msgpack:"id"`
	Centroid []float32 `msgpack:"centroid"`
	Members  []string  `msgpack:"members"`
}

// VectorLookup resolves a document to its stored embedding.
type VectorLookup func(docID string) ([]float32, bool)

// Snapshot captures clusters in id order.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{Dimensions: s.dimensions, NextID: s.nextID, Clusters: make([]ClusterState, 0, len(s.groups))}
	for id, g := range s.groups {
		centroid := make([]float32, len(g.centroid))
		copy(centroid, g.centroid)
		snap.Clusters = append(snap.Clusters, ClusterState{ID: id, Centroid: centroid, Members: sortedMembers(g.members)})
	}
	sort.Slice(snap.Clusters, func(i, j int) bool { return snap.Clusters[i].ID < snap.Clusters[j].ID })
	return snap
}

// Restore replaces the store contents with snap, resolving member embeddings through lookup.
// The store is unchanged on error.
func (s *Store) Restore(snap *Snapshot, lookup VectorLookup) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", models.ErrPersistenceCorrupt)
	}
	if snap.Dimensions != s.dimensions {
		return fmt.Errorf("%w: snapshot has %d, store expects %d", models.ErrDimensionMismatch, snap.Dimensions, s.dimensions)
	}
	groups := make(map[uint64]*group, len(snap.Clusters))
	docGroup := make(map[string]uint64)
	docVec := make(map[string][]float32)
	for _, cs := range snap.Clusters {
		if cs.ID >= snap.NextID {
			return fmt.Errorf("%w: cluster id %d not below next id %d", models.ErrPersistenceCorrupt, cs.ID, snap.NextID)
		}
		if _, dup := groups[cs.ID]; dup {
			return fmt.Errorf("%w: duplicate cluster id %d", models.ErrPersistenceCorrupt, cs.ID)
		}
		if len(cs.Centroid) != s.dimensions || len(cs.Members) == 0 {
			return fmt.Errorf("%w: malformed cluster %d", models.ErrPersistenceCorrupt, cs.ID)
		}
		members := make(map[string]struct{}, len(cs.Members))
		for _, doc := range cs.Members {
			if _, dup := docGroup[doc]; dup {
				return fmt.Errorf("%w: document %s in more than one cluster", models.ErrPersistenceCorrupt, doc)
			}
			vec, ok := lookup(doc)
			if !ok {
				return fmt.Errorf("%w: member %s of cluster %d has no vector", models.ErrPersistenceCorrupt, doc, cs.ID)
			}
			members[doc] = struct{}{}
			docGroup[doc] = cs.ID
			docVec[doc] = vector.Normalize(vec)
		}
		groups[cs.ID] = &group{id: cs.ID, centroid: vector.Normalize(cs.Centroid), members: members}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = groups
	s.docGroup = docGroup
	s.docVec = docVec
	s.nextID = snap.NextID
	return nil
}
