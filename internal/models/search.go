package models

import "fmt"

// Source names a ranking backend that contributes to a hybrid result set.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
)

// SearchQuery is a hybrid query request.
type SearchQuery struct {
	Query string `json:"query"`
	Size  int    `json:"size,omitempty"`
	// Alpha weights vector vs lexical contribution: 1 is pure vector, 0 pure lexical.
	// Nil means the configured default.
	Alpha *float64 `json:"alpha,omitempty"`
	// Filters restrict results to documents whose metadata matches.
	Filters Filters `json:"filters,omitempty"`
}

// Validate checks the query and applies defaults. Size 0 becomes defaultSize and sizes
// above maxSize are capped.
func (q *SearchQuery) Validate(defaultSize, maxSize int, defaultAlpha float64) error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.Size < 0 {
		return fmt.Errorf("%w: size must not be negative", ErrInvalidQuery)
	}
	if q.Size == 0 {
		q.Size = defaultSize
	}
	if q.Size > maxSize {
		q.Size = maxSize
	}
	if q.Alpha == nil {
		a := defaultAlpha
		q.Alpha = &a
	}
	if *q.Alpha < 0 || *q.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be within [0,1], got %v", ErrInvalidQuery, *q.Alpha)
	}
	return q.Filters.Validate()
}

// SearchResult is a single fused hit. LexicalScore and VectorScore are nil when the
// document was not returned by that source.
type SearchResult struct {
	DocID        string   `json:"doc_id"`
	LexicalScore *float64 `json:"lexical_score,omitempty"`
	VectorScore  *float64 `json:"vector_score,omitempty"`
	FusedScore   float64  `json:"fused_score"`
	Rank         uint32   `json:"rank"`
}

// SearchResponse is the response for a hybrid query.
type SearchResponse struct {
	Results []*SearchResult `json:"results"`
	// Degraded is set when only one backend answered.
	Degraded      bool     `json:"degraded"`
	FailedSources []Source `json:"failed_sources,omitempty"`
	Query         string   `json:"query"`
	QueryTime     int64    `json:"query_time_ms"`
}

// SimilarQuery asks for the stored documents closest to a piece of text.
type SimilarQuery struct {
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`
}

// SimilarDocument is a stored document whose similarity to the query text reached the
// clustering threshold.
type SimilarDocument struct {
	DocID      string                 `json:"doc_id"`
	Similarity float64                `json:"similarity"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
