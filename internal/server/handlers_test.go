package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/embedding"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/lexical"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Embedding.Dimensions = 64
	off := false
	cfg.Cluster.AutoRetrain = &off
	config.ApplyDefaults(cfg)

	docs, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	lex, err := lexical.NewBleveClient("")
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(context.Background(), engine.Deps{
		Embedder:  embedding.NewHashingEmbedder(64),
		Lexical:   lex,
		Documents: docs,
	}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return NewServer(eng, cfg, nil), eng
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleIngestAndGet(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	w := do(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: "d1", Text: "hello world"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var res models.IngestResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.DocID != "d1" || !res.NewCluster {
		t.Errorf("ingest result: %+v", res)
	}

	w = do(t, h, http.MethodGet, "/api/v1/documents/d1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Text != "hello world" {
		t.Errorf("text: got %q", doc.Text)
	}

	w = do(t, h, http.MethodGet, "/api/v1/documents/d1/cluster", nil)
	if w.Code != http.StatusOK {
		t.Errorf("cluster of: got %d", w.Code)
	}
}

func TestHandleIngest_EmptyText(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: "d1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, eng := newTestServer(t)
	if _, err := eng.Ingest(context.Background(), "d1", "hello world", nil); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv.Router(), http.MethodPost, "/api/v1/search", map[string]string{"query": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].DocID != "d1" {
		t.Errorf("results: %+v", resp.Results)
	}
}

func TestHandleSearch_Filters(t *testing.T) {
	srv, eng := newTestServer(t)
	ctx := context.Background()
	if _, err := eng.Ingest(ctx, "en", "hello world", map[string]interface{}{"lang": "en"}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Ingest(ctx, "de", "hello world", map[string]interface{}{"lang": "de"}); err != nil {
		t.Fatal(err)
	}

	body := map[string]interface{}{"query": "hello", "filters": map[string]interface{}{"lang": "de"}}
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/search", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocID != "de" {
		t.Errorf("filtered results: %+v", resp.Results)
	}

	body["filters"] = map[string]interface{}{"lang": map[string]interface{}{"nested": true}}
	if w := do(t, srv.Router(), http.MethodPost, "/api/v1/search", body); w.Code != http.StatusBadRequest {
		t.Errorf("nested filter: got %d, want 400", w.Code)
	}
}

func TestHandleSimilarDocuments(t *testing.T) {
	srv, eng := newTestServer(t)
	if _, err := eng.Ingest(context.Background(), "d1", "hello world", nil); err != nil {
		t.Fatal(err)
	}
	h := srv.Router()

	w := do(t, h, http.MethodPost, "/api/v1/similar", models.SimilarQuery{Text: "hello world", K: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Documents []models.SimilarDocument `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 1 || out.Documents[0].DocID != "d1" || out.Documents[0].Text != "hello world" {
		t.Errorf("similar documents: %+v", out.Documents)
	}

	if w := do(t, h, http.MethodPost, "/api/v1/similar", models.SimilarQuery{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty text: got %d, want 400", w.Code)
	}
}

func TestHandleSearch_InvalidAlpha(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Router(), http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "hello", "alpha": 2})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	srv, eng := newTestServer(t)
	if _, err := eng.Ingest(context.Background(), "d1", "hello world", nil); err != nil {
		t.Fatal(err)
	}
	h := srv.Router()
	if w := do(t, h, http.MethodDelete, "/api/v1/documents/d1", nil); w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/api/v1/documents/d1", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/documents/d1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d, want 404", w.Code)
	}
}

func TestHandleClusters(t *testing.T) {
	srv, eng := newTestServer(t)
	res, err := eng.Ingest(context.Background(), "d1", "hello world", nil)
	if err != nil {
		t.Fatal(err)
	}
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/v1/clusters", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clusters: got %d", w.Code)
	}
	var list struct {
		Clusters []models.ClusterSummary `json:"clusters"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Clusters) != 1 || list.Clusters[0].Representative != "d1" {
		t.Errorf("clusters: %+v", list.Clusters)
	}

	w = do(t, h, http.MethodGet, fmt.Sprintf("/api/v1/clusters/%d/members", res.ClusterID), nil)
	var members struct {
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(w.Body).Decode(&members); err != nil {
		t.Fatal(err)
	}
	if len(members.Members) != 1 || members.Members[0] != "d1" {
		t.Errorf("members: %v", members.Members)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/clusters/abc/members", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/clusters/999/similar", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown similar: got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/clusters/retrain", nil); w.Code != http.StatusOK {
		t.Errorf("retrain: got %d, body: %s", w.Code, w.Body.String())
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()
	if w := do(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Stats     models.Stats     `json:"stats"`
		DiskUsage map[string]int64 `json:"disk_usage"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Stats.Dimensions != 64 {
		t.Errorf("dimensions: got %d", out.Stats.Dimensions)
	}
	for _, name := range []string{"database", "lexical_index", "vectors_snapshot", "clusters_snapshot"} {
		if _, ok := out.DiskUsage[name]; !ok {
			t.Errorf("disk usage missing %s: %v", name, out.DiskUsage)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrInvalidQuery), http.StatusBadRequest},
		{models.ErrDimensionMismatch, http.StatusBadRequest},
		{fmt.Errorf("doc: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: a; b", models.ErrBothBackendsUnavailable), http.StatusServiceUnavailable},
		{models.ErrRetrainFailure, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
