package config

import (
	"runtime"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/summiva/data/db/documents.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/summiva/data/indices/bleve"
	}
	if cfg.Storage.SnapshotDir == "" {
		cfg.Storage.SnapshotDir = "/usr/local/var/summiva/data/snapshots"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "auto"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/summiva/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 2 * time.Second
	}
	if cfg.Search.DefaultSize == 0 {
		cfg.Search.DefaultSize = 10
	}
	if cfg.Search.MaxSize == 0 {
		cfg.Search.MaxSize = 100
	}
	if cfg.Search.DefaultAlpha == nil {
		a := 0.5
		cfg.Search.DefaultAlpha = &a
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.LexicalTimeout == 0 {
		cfg.Search.LexicalTimeout = 3 * time.Second
	}
	if cfg.Search.VectorTimeout == 0 {
		cfg.Search.VectorTimeout = 3 * time.Second
	}
	if cfg.Search.LexicalRetries == nil {
		r := 3
		cfg.Search.LexicalRetries = &r
	}
	if cfg.Cluster.SimilarityThreshold == nil {
		t := 0.75
		cfg.Cluster.SimilarityThreshold = &t
	}
	if cfg.Cluster.RetrainMultiplier == 0 {
		cfg.Cluster.RetrainMultiplier = 2
	}
	if cfg.Cluster.MaxIterations == 0 {
		cfg.Cluster.MaxIterations = 50
	}
	if cfg.Cluster.Tolerance == 0 {
		cfg.Cluster.Tolerance = 1e-4
	}
	if cfg.Cluster.Seed == 0 {
		cfg.Cluster.Seed = 42
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.NumCPU()
	}
	if cfg.Engine.SaveDebounce == 0 {
		cfg.Engine.SaveDebounce = 500 * time.Millisecond
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Inbox.Directories) > 0 && cfg.Inbox.Recursive == nil {
		t := true
		cfg.Inbox.Recursive = &t
	}
}
