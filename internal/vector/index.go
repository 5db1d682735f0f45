// Package vector provides a mutable vector index and similarity search.
package vector

import "context"

// VectorIndex stores one live embedding per document and answers nearest-neighbour queries.
// Internal ids are assigned monotonically and never reused, including across Snapshot/Restore.
type VectorIndex interface {
	Add(ctx context.Context, docID string, embedding []float32) (uint64, error)
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Reconstruct(internalID uint64) ([]float32, error)
	Remove(ctx context.Context, docID string) error
	Lookup(docID string) (uint64, bool)
	Size() int
	Dimensions() int
	Entries() []Entry
	Snapshot() *Snapshot
	Restore(snap *Snapshot) error
}

// Neighbor is a single vector search hit. Distance is squared Euclidean.
type Neighbor struct {
	InternalID uint64
	DocID      string
	Distance   float64
}

// Similarity converts the hit distance to a [0,1] score.
func (n Neighbor) Similarity() float64 {
	return DistanceToSimilarity(n.Distance)
}

// Entry is a live index slot.
type Entry struct {
	InternalID uint64    `msgpack:"id"`
	DocID      string    `msgpack:"doc"`
	Vector     []float32 `msgpack:"vec"`
}

// Snapshot is the persisted form of an index. NextID is kept so ids stay unique after reload.
type Snapshot struct {
	Dimensions int     `msgpack:"dims"`
	NextID     uint64  `msgpack:"next_id"`
	Entries    []Entry `msgpack:"entries"`
}
