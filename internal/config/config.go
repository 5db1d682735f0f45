// Package config provides configuration loading and structs for the Summiva engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Engine    EngineConfig    `yaml:"engine"`
	Inbox     InboxConfig     `yaml:"inbox"`
}

// InboxConfig holds directory inbox settings.
type InboxConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *InboxConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the document database, the lexical index and snapshots.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	SnapshotDir    string `yaml:"snapshot_dir"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "onnx", "hashing", or "auto" (onnx with hashing fallback).
	Provider   string        `yaml:"provider"`
	ModelPath  string        `yaml:"model_path"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SearchConfig holds hybrid query settings.
type SearchConfig struct {
	DefaultSize    int           `yaml:"default_size"`
	MaxSize        int           `yaml:"max_size"`
	DefaultAlpha   *float64      `yaml:"default_alpha"`
	TopKCandidates int           `yaml:"top_k_candidates"`
	LexicalTimeout time.Duration `yaml:"lexical_timeout"`
	VectorTimeout  time.Duration `yaml:"vector_timeout"`
	LexicalRetries *int          `yaml:"lexical_retries"`
	// Fuzziness is the bleve edit distance for query terms (0 = exact, max 2).
	Fuzziness      int           `yaml:"fuzziness"`
}

// Retries returns how many times a failed lexical call is retried; 3 when unset.
func (s *SearchConfig) Retries() int {
	if s.LexicalRetries != nil {
		return *s.LexicalRetries
	}
	return 3
}

// Alpha returns the default fusion weight; 0.5 when unset.
func (s *SearchConfig) Alpha() float64 {
	if s.DefaultAlpha != nil {
		return *s.DefaultAlpha
	}
	return 0.5
}

// ClusterConfig holds incremental clustering and retrain settings.
type ClusterConfig struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	RetrainMultiplier   int      `yaml:"retrain_multiplier"`
	// NumClusters fixes k for retraining; 0 keeps the current cluster count.
	NumClusters   int     `yaml:"num_clusters"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	Seed          int64   `yaml:"seed"`
	AutoRetrain   *bool   `yaml:"auto_retrain"`
}

// Threshold returns the similarity a document needs to join a cluster; 0.75 when unset.
func (c *ClusterConfig) Threshold() float64 {
	if c.SimilarityThreshold != nil {
		return *c.SimilarityThreshold
	}
	return 0.75
}

// AutoRetrainOrDefault returns whether threshold-triggered retraining is on; defaults to true.
func (c *ClusterConfig) AutoRetrainOrDefault() bool {
	if c.AutoRetrain != nil {
		return *c.AutoRetrain
	}
	return true
}

// EngineConfig holds worker and background-save settings.
type EngineConfig struct {
	Workers      int           `yaml:"workers"`
	SaveDebounce time.Duration `yaml:"save_debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.SnapshotDir = expandPath(cfg.Storage.SnapshotDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Inbox.Directories {
		cfg.Inbox.Directories[i] = expandPath(cfg.Inbox.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func Validate(cfg *Config) error {
	if t := cfg.Cluster.Threshold(); t < 0 || t > 1 {
		return fmt.Errorf("cluster.similarity_threshold must be within [0,1], got %v", t)
	}
	if a := cfg.Search.Alpha(); a < 0 || a > 1 {
		return fmt.Errorf("search.default_alpha must be within [0,1], got %v", a)
	}
	if m := cfg.Search.MaxSize; m < 1 || m > 100 {
		return fmt.Errorf("search.max_size must be within [1,100], got %d", m)
	}
	if d := cfg.Search.DefaultSize; d < 1 || d > cfg.Search.MaxSize {
		return fmt.Errorf("search.default_size must be within [1,%d], got %d", cfg.Search.MaxSize, d)
	}
	if r := cfg.Search.Retries(); r < 0 {
		return fmt.Errorf("search.lexical_retries must not be negative, got %d", r)
	}
	if cfg.Cluster.RetrainMultiplier < 1 {
		return fmt.Errorf("cluster.retrain_multiplier must be at least 1, got %d", cfg.Cluster.RetrainMultiplier)
	}
	if f := cfg.Search.Fuzziness; f < 0 || f > 2 {
		return fmt.Errorf("search.fuzziness must be within [0,2], got %d", f)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	switch cfg.Embedding.Provider {
	case "onnx", "hashing", "auto":
	default:
		return fmt.Errorf("unknown embedding.provider %q", cfg.Embedding.Provider)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
