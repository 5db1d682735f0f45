// Package models defines core data structures for documents, search results, and clusters.
package models

import "time"

// Document is a caller-supplied document as recorded in the source-of-truth store.
// Embedding is immutable once computed; re-ingesting the same ID creates a new version.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Text      string                 `json:"text" db:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Embedding []float32              `json:"-" db:"-"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IngestResult reports where an ingested document landed.
type IngestResult struct {
	DocID      string  `json:"doc_id"`
	InternalID uint64  `json:"internal_id"`
	ClusterID  uint64  `json:"cluster_id"`
	Similarity float64 `json:"similarity"`
	NewCluster bool    `json:"new_cluster"`
}
