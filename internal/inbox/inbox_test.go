package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

type memorySink struct {
	mu      sync.Mutex
	docs    map[string]*models.Document
	ingests int
}

func newMemorySink() *memorySink {
	return &memorySink{docs: make(map[string]*models.Document)}
}

func (s *memorySink) Ingest(ctx context.Context, docID, text string, metadata map[string]interface{}) (*models.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docID] = &models.Document{ID: docID, Text: text, Metadata: metadata}
	s.ingests++
	return &models.IngestResult{DocID: docID}, nil
}

func (s *memorySink) Remove(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return fmt.Errorf("document %s: %w", docID, models.ErrNotFound)
	}
	delete(s.docs, docID)
	return nil
}

func (s *memorySink) Document(ctx context.Context, docID string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return doc, nil
}

func (s *memorySink) text(docID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return "", false
	}
	return doc.Text, true
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func TestDocIDStable(t *testing.T) {
	a := DocID("/tmp/inbox/a.txt")
	assert.Equal(t, a, DocID("/tmp/inbox/./a.txt"))
	assert.NotEqual(t, a, DocID("/tmp/inbox/b.txt"))
	assert.Len(t, a, len("file:")+32)
}

func TestIngestFile_SkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("cats purr"), 0644))

	sink := newMemorySink()
	in := New(sink, []string{dir}, []string{".txt"}, true)
	ctx := context.Background()

	ingested, err := in.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, ingested)

	ingested, err = in.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, ingested)
	assert.Equal(t, 1, sink.ingests)

	require.NoError(t, os.WriteFile(path, []byte("cats purr loudly"), 0644))
	ingested, err = in.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, ingested)
	text, ok := sink.text(DocID(path))
	require.True(t, ok)
	assert.Equal(t, "cats purr loudly", text)

	doc, err := sink.Document(ctx, DocID(path))
	require.NoError(t, err)
	assert.Equal(t, "note.txt", doc.Metadata["title"])
}

func TestIngestFile_RejectsExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0644))

	in := New(newMemorySink(), []string{dir}, []string{".txt", "md"}, true)
	_, err := in.IngestFile(context.Background(), path)
	assert.Error(t, err)
}

func TestIngestDirectory_Recursion(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("beta"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte("gamma"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "d.txt"), []byte("delta"), 0644))

	flat := newMemorySink()
	n, err := New(flat, []string{dir}, []string{".txt", ".md"}, false).IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deep := newMemorySink()
	n, err = New(deep, []string{dir}, []string{".txt", ".md"}, true).IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRemoveFile_UnknownIsNotAnError(t *testing.T) {
	in := New(newMemorySink(), nil, nil, true)
	assert.NoError(t, in.RemoveFile(context.Background(), "/nowhere/ghost.txt"))
}

func TestInbox_WatchesDirectory(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0644))

	sink := newMemorySink()
	in := New(sink, []string{dir}, []string{".txt"}, true, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, in.Start(ctx))
	defer in.Stop()

	_, ok := sink.text(DocID(existing))
	assert.True(t, ok, "existing files are ingested on start")

	dropped := filepath.Join(dir, "dropped.txt")
	require.NoError(t, os.WriteFile(dropped, []byte("dogs bark"), 0644))
	require.Eventually(t, func() bool {
		text, ok := sink.text(DocID(dropped))
		return ok && text == "dogs bark"
	}, 3*time.Second, 20*time.Millisecond)

	ignored := filepath.Join(dir, "ignored.bin")
	require.NoError(t, os.WriteFile(ignored, []byte("binary"), 0644))

	require.NoError(t, os.Remove(dropped))
	require.Eventually(t, func() bool {
		_, ok := sink.text(DocID(dropped))
		return !ok
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, sink.count())
}
