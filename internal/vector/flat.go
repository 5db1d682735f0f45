package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// FlatIndex is an exact in-memory index using brute-force squared L2 search over
// unit-normalized vectors. Removed slots are tombstoned; their ids are never handed out again.
type FlatIndex struct {
	dimensions int
	nextID     uint64
	vectors    map[uint64][]float32
	docOf      map[uint64]string
	byDoc      map[string]uint64
	listeners  []func()
	mu         sync.RWMutex
}

var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an empty index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make(map[uint64][]float32),
		docOf:      make(map[uint64]string),
		byDoc:      make(map[string]uint64),
	}, nil
}

// OnMutation registers fn to run after every successful Add or Remove.
// Listeners run outside the index lock.
func (f *FlatIndex) OnMutation(fn func()) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *FlatIndex) notify() {
	f.mu.RLock()
	listeners := append([]func(){}, f.listeners...)
	f.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Add stores a normalized copy of embedding under a fresh internal id. If docID is already
// live, its previous slot is tombstoned.
func (f *FlatIndex) Add(ctx context.Context, docID string, embedding []float32) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(embedding) != f.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(embedding), f.dimensions)
	}
	vec := Normalize(embedding)

	f.mu.Lock()
	if old, ok := f.byDoc[docID]; ok {
		delete(f.vectors, old)
		delete(f.docOf, old)
	}
	id := f.nextID
	f.nextID++
	f.vectors[id] = vec
	f.docOf[id] = docID
	f.byDoc[docID] = id
	f.mu.Unlock()

	f.notify()
	return id, nil
}

// Search returns up to k live entries ordered by ascending distance, ties by ascending internal id.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", models.ErrDimensionMismatch, len(query), f.dimensions)
	}
	q := Normalize(query)

	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return []Neighbor{}, nil
	}
	hits := make([]Neighbor, 0, len(f.vectors))
	for id, vec := range f.vectors {
		if len(hits)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits = append(hits, Neighbor{InternalID: id, DocID: f.docOf[id], Distance: SquaredL2(q, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].InternalID < hits[j].InternalID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Reconstruct returns a copy of the stored vector.
func (f *FlatIndex) Reconstruct(internalID uint64) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	vec, ok := f.vectors[internalID]
	if !ok {
		return nil, fmt.Errorf("%w: internal id %d", models.ErrNotFound, internalID)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// Remove tombstones the live slot of docID.
func (f *FlatIndex) Remove(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	id, ok := f.byDoc[docID]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: document %s", models.ErrNotFound, docID)
	}
	delete(f.byDoc, docID)
	delete(f.vectors, id)
	delete(f.docOf, id)
	f.mu.Unlock()

	f.notify()
	return nil
}

// Lookup returns the live internal id for docID.
func (f *FlatIndex) Lookup(docID string) (uint64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.byDoc[docID]
	return id, ok
}

// Size returns the number of live vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the fixed vector length.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// NextID returns the id the next Add will assign.
func (f *FlatIndex) NextID() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nextID
}

// Entries returns a copy of all live entries sorted by internal id.
func (f *FlatIndex) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.entriesLocked()
}

func (f *FlatIndex) entriesLocked() []Entry {
	out := make([]Entry, 0, len(f.vectors))
	for id, vec := range f.vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out = append(out, Entry{InternalID: id, DocID: f.docOf[id], Vector: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalID < out[j].InternalID })
	return out
}

// Snapshot captures the live entries and the id counter.
func (f *FlatIndex) Snapshot() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &Snapshot{Dimensions: f.dimensions, NextID: f.nextID, Entries: f.entriesLocked()}
}

// Restore replaces the index contents with snap. The index is unchanged on error.
func (f *FlatIndex) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", models.ErrPersistenceCorrupt)
	}
	if snap.Dimensions != f.dimensions {
		return fmt.Errorf("%w: snapshot has %d, index expects %d", models.ErrDimensionMismatch, snap.Dimensions, f.dimensions)
	}
	vectors := make(map[uint64][]float32, len(snap.Entries))
	docOf := make(map[uint64]string, len(snap.Entries))
	byDoc := make(map[string]uint64, len(snap.Entries))
	for _, e := range snap.Entries {
		if len(e.Vector) != f.dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions", models.ErrPersistenceCorrupt, e.InternalID, len(e.Vector))
		}
		if e.InternalID >= snap.NextID {
			return fmt.Errorf("%w: entry id %d not below next id %d", models.ErrPersistenceCorrupt, e.InternalID, snap.NextID)
		}
		if _, dup := vectors[e.InternalID]; dup {
			return fmt.Errorf("%w: duplicate internal id %d", models.ErrPersistenceCorrupt, e.InternalID)
		}
		if _, dup := byDoc[e.DocID]; dup {
			return fmt.Errorf("%w: duplicate document %s", models.ErrPersistenceCorrupt, e.DocID)
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		vectors[e.InternalID] = vec
		docOf[e.InternalID] = e.DocID
		byDoc[e.DocID] = e.InternalID
	}

	f.mu.Lock()
	f.vectors = vectors
	f.docOf = docOf
	f.byDoc = byDoc
	f.nextID = snap.NextID
	f.mu.Unlock()
	return nil
}
