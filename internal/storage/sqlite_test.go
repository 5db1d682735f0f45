package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

func TestSQLiteStore_CRUD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := &models.Document{
		ID:        "doc1",
		Text:      "Content",
		Metadata:  map[string]interface{}{"k": "v"},
		Embedding: []float32{0.6, 0.8},
	}
	if err := store.Put(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	created := doc.CreatedAt

	got, err := store.Get(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Content" || got.Metadata["k"] != "v" {
		t.Errorf("got %+v", got)
	}
	if len(got.Embedding) != 2 || got.Embedding[1] != 0.8 {
		t.Errorf("embedding round trip: got %v", got.Embedding)
	}

	update := &models.Document{ID: "doc1", Text: "Updated"}
	if err := store.Put(ctx, update); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, "doc1")
	if got.Text != "Updated" {
		t.Errorf("expected Updated, got %s", got.Text)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed on update: %v -> %v", created, got.CreatedAt)
	}
	if got.Embedding != nil {
		t.Errorf("embedding should be replaced, got %v", got.Embedding)
	}

	list, err := store.List(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := store.Delete(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "doc1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "doc1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSQLiteStore_IterateAndCount(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := store.Put(ctx, &models.Document{ID: id, Text: "text " + id}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	var order []string
	err = store.Iterate(ctx, func(d *models.Document) error {
		order = append(order, d.ID)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Errorf("iterate order = %v", order)
	}

	stop := errors.New("stop")
	calls := 0
	err = store.Iterate(ctx, func(*models.Document) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Iterate should stop on first error: calls=%d err=%v", calls, err)
	}
}

func TestSQLiteStore_SearchText(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	for id, text := range map[string]string{
		"a": "Cats sleep all day",
		"b": "dogs chase cats",
		"c": "stock markets fell",
		"d": "100% pure_gold",
	} {
		if err := store.Put(ctx, &models.Document{ID: id, Text: text}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := store.SearchText(ctx, []string{"cats", "markets"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("SearchText ids = %v", ids)
	}

	docs, err = store.SearchText(ctx, []string{"cats"}, 1)
	if err != nil || len(docs) != 1 {
		t.Errorf("limit: got %d docs, %v", len(docs), err)
	}

	docs, err = store.SearchText(ctx, []string{"0%"}, 10)
	if err != nil || len(docs) != 1 || docs[0].ID != "d" {
		t.Errorf("wildcards in terms must be literal: %v, %v", docs, err)
	}
	docs, err = store.SearchText(ctx, []string{"s_e"}, 10)
	if err != nil || len(docs) != 0 {
		t.Errorf("underscore must be literal: %v, %v", docs, err)
	}
}
