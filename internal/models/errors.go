package models

import "errors"

// Error taxonomy shared by the retrieval core.
var (
	// ErrDimensionMismatch rejects an embedding whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFound is returned for unknown or tombstoned ids; callers treat it as empty.
	ErrNotFound = errors.New("not found")
	// ErrBackendTimeout marks a collaborator that did not answer within its budget.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrPersistenceCorrupt marks an unreadable or incompatible snapshot.
	ErrPersistenceCorrupt = errors.New("persistence corrupt")
	// ErrRetrainFailure means clustering could not be retrained; prior centroids are kept.
	ErrRetrainFailure = errors.New("retrain failure")
	// ErrBothBackendsUnavailable is returned when neither lexical nor vector search answered.
	ErrBothBackendsUnavailable = errors.New("both backends unavailable")
	// ErrInvalidQuery rejects malformed query or ingest input.
	ErrInvalidQuery = errors.New("invalid query")
)
