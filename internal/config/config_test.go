package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
search:
  lexical_timeout: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Search.LexicalTimeout != 250*time.Millisecond {
		t.Errorf("lexical_timeout = %v, want 250ms", cfg.Search.LexicalTimeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/documents.db"
  snapshot_dir: "./data/snapshots"
inbox:
  directories: ["./dev/inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "documents.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantSnap := filepath.Join(dir, "data", "snapshots")
	if cfg.Storage.SnapshotDir != wantSnap {
		t.Errorf("snapshot_dir = %s, want %s", cfg.Storage.SnapshotDir, wantSnap)
	}
	if len(cfg.Inbox.Directories) != 1 {
		t.Fatalf("inbox directories: got %d", len(cfg.Inbox.Directories))
	}
	wantInbox := filepath.Join(dir, "dev", "inbox")
	if cfg.Inbox.Directories[0] != wantInbox {
		t.Errorf("inbox directory = %s, want %s", cfg.Inbox.Directories[0], wantInbox)
	}
}

func TestLoad_rejectsInvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("cluster:\n  similarity_threshold: 1.5\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for threshold above 1")
	}
}

func TestValidate_rejectsFuzziness(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Search.Fuzziness = 3
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for fuzziness above 2")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.DefaultSize != 10 || cfg.Search.MaxSize != 100 {
		t.Errorf("default sizes: got %d/%d", cfg.Search.DefaultSize, cfg.Search.MaxSize)
	}
	if cfg.Search.Alpha() != 0.5 {
		t.Errorf("default alpha: got %v", cfg.Search.Alpha())
	}
	if cfg.Cluster.Threshold() != 0.75 {
		t.Errorf("default threshold: got %v, want 0.75", cfg.Cluster.Threshold())
	}
	if cfg.Search.Retries() != 3 {
		t.Errorf("default lexical retries: got %d, want 3", cfg.Search.Retries())
	}
	if cfg.Cluster.RetrainMultiplier != 2 {
		t.Errorf("default retrain multiplier: got %d, want 2", cfg.Cluster.RetrainMultiplier)
	}
	if !cfg.Cluster.AutoRetrainOrDefault() {
		t.Error("auto retrain should default to true")
	}
	if cfg.Engine.Workers <= 0 {
		t.Errorf("workers: got %d", cfg.Engine.Workers)
	}
	if len(cfg.Inbox.Extensions) != 5 || cfg.Inbox.Extensions[0] != ".txt" {
		t.Errorf("inbox extensions: got %v", cfg.Inbox.Extensions)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_keepsExplicitZeroAlpha(t *testing.T) {
	zero := 0.0
	cfg := &Config{Search: SearchConfig{DefaultAlpha: &zero}}
	ApplyDefaults(cfg)
	if cfg.Search.Alpha() != 0 {
		t.Errorf("explicit alpha 0 overwritten: got %v", cfg.Search.Alpha())
	}
}

func TestLoad_keepsExplicitZeroThresholdAndRetries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
cluster:
  similarity_threshold: 0
search:
  lexical_retries: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cluster.Threshold() != 0 {
		t.Errorf("explicit threshold 0 overwritten: got %v", cfg.Cluster.Threshold())
	}
	if cfg.Search.Retries() != 0 {
		t.Errorf("explicit lexical_retries 0 overwritten: got %d", cfg.Search.Retries())
	}
}

func TestLoad_rejectsMaxSizeAboveLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("search:\n  max_size: 500\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for max_size above 100")
	}
}

func TestValidate_rejectsNegativeRetries(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	neg := -1
	cfg.Search.LexicalRetries = &neg
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative lexical_retries")
	}
}

func TestApplyDefaults_InboxRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Inbox: InboxConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Inbox.Recursive == nil || !*cfg.Inbox.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestInboxConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &InboxConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &InboxConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		Search:  SearchConfig{VectorTimeout: 2 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Search.VectorTimeout != 2*time.Second {
		t.Errorf("loaded vector_timeout: got %v", loaded.Search.VectorTimeout)
	}
}
