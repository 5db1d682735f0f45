package lexical

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/storage"
)

func newScanStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	docs := []*models.Document{
		{ID: "a", Text: "cats and more cats", Metadata: map[string]interface{}{"kind": "pet"}},
		{ID: "b", Text: "dogs chase cats", Metadata: map[string]interface{}{"kind": "pet"}},
		{ID: "c", Text: "markets and stocks", Metadata: map[string]interface{}{"kind": "finance", "title": "Cats index"}},
	}
	for _, d := range docs {
		require.NoError(t, store.Put(ctx, d))
	}
	return store
}

func TestStoreClient_ScoresByOccurrences(t *testing.T) {
	c := NewStoreClient(newScanStore(t), 0)
	hits, err := c.Search(context.Background(), "Cats!", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, Hit{DocID: "a", Score: 2}, hits[0])
	assert.Equal(t, Hit{DocID: "b", Score: 1}, hits[1])
	assert.Equal(t, Hit{DocID: "c", Score: 1}, hits[2], "title counts")

	hits, err = c.Search(context.Background(), "cats", 1, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = c.Search(context.Background(), "  ", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStoreClient_AppliesFilters(t *testing.T) {
	c := NewStoreClient(newScanStore(t), 0)
	hits, err := c.Search(context.Background(), "cats", 10, models.Filters{"kind": "finance"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].DocID)
}

type downClient struct{ calls int }

func (d *downClient) Search(ctx context.Context, text string, size int, filters models.Filters) ([]Hit, error) {
	d.calls++
	return nil, errors.New("index unavailable")
}

func TestFallback_StoreScanAnswersWhenIndexIsDown(t *testing.T) {
	down := &downClient{}
	f := NewFallback(0, down, NewStoreClient(newScanStore(t), 0))
	hits, err := f.Search(context.Background(), "dogs", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].DocID)
	assert.Equal(t, 1, down.calls)
}
