package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Client talks to a running summiva server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping reports whether the server answers its health check.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}

// Search runs a hybrid query.
func (c *Client) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimilarDocuments returns stored documents close to text.
func (c *Client) SimilarDocuments(ctx context.Context, text string, k int) ([]models.SimilarDocument, error) {
	var out struct {
		Documents []models.SimilarDocument `json:"documents"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/similar", &models.SimilarQuery{Text: text, K: k}, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// Ingest adds or replaces a document.
func (c *Client) Ingest(ctx context.Context, in *models.DocumentInput) (*models.IngestResult, error) {
	var res models.IngestResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Remove deletes a document.
func (c *Client) Remove(ctx context.Context, docID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+url.PathEscape(docID), nil, nil)
}

// ClusterOf returns the cluster holding docID.
func (c *Client) ClusterOf(ctx context.Context, docID string) (uint64, error) {
	var out struct {
		ClusterID uint64 `json:"cluster_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(docID)+"/cluster", nil, &out); err != nil {
		return 0, err
	}
	return out.ClusterID, nil
}

// MembersOf lists a cluster's members.
func (c *Client) MembersOf(ctx context.Context, clusterID uint64) ([]string, error) {
	var out struct {
		Members []string `json:"members"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/clusters/%d/members", clusterID), nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

// SimilarClusters lists clusters similar to clusterID.
func (c *Client) SimilarClusters(ctx context.Context, clusterID uint64, limit int) ([]uint64, error) {
	var out struct {
		Similar []uint64 `json:"similar"`
	}
	path := fmt.Sprintf("/api/v1/clusters/%d/similar?limit=%d", clusterID, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Similar, nil
}

// Clusters lists cluster summaries.
func (c *Client) Clusters(ctx context.Context) ([]models.ClusterSummary, error) {
	var out struct {
		Clusters []models.ClusterSummary `json:"clusters"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/clusters", nil, &out); err != nil {
		return nil, err
	}
	return out.Clusters, nil
}

// Retrain triggers a synchronous retrain and returns the resulting stats.
func (c *Client) Retrain(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := c.do(ctx, http.MethodPost, "/api/v1/clusters/retrain", nil, &stats)
	return stats, err
}

// Stats returns engine statistics.
func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var out struct {
		Stats models.Stats `json:"stats"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
	return out.Stats, err
}

// StatusError is a non-2xx server answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Unwrap maps well-known status codes back to the engine's sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusBadRequest:
		return models.ErrInvalidQuery
	case http.StatusServiceUnavailable:
		return models.ErrBothBackendsUnavailable
	default:
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
