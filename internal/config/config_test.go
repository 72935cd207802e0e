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
embedding:
  timeout: 3s
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
	if cfg.Embedding.Timeout != 3*time.Second {
		t.Errorf("embedding timeout = %s, want 3s", cfg.Embedding.Timeout)
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
  database_path: "./data/pmagent.db"
  snapshot_path: "./data/vectors.zst"
context:
  sources:
    directories: ["./docs"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "pmagent.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantSnap := filepath.Join(dir, "data", "vectors.zst")
	if cfg.Storage.SnapshotPath != wantSnap {
		t.Errorf("snapshot_path = %s, want %s", cfg.Storage.SnapshotPath, wantSnap)
	}
	if len(cfg.Context.Sources.Directories) != 1 || cfg.Context.Sources.Directories[0] != filepath.Join(dir, "docs") {
		t.Errorf("source directories: got %v", cfg.Context.Sources.Directories)
	}
}

func TestLoad_emptySnapshotPathStaysEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.SnapshotPath != "" {
		t.Errorf("snapshot_path should stay empty, got %q", cfg.Storage.SnapshotPath)
	}
}

func TestLoad_rejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
context:
  on_duplicate: "merge"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown on_duplicate policy")
	}
}

func TestLoad_rejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  provider: word2vec\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown embedding provider")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Context.TopK != 2 {
		t.Errorf("default top_k: got %d", cfg.Context.TopK)
	}
	if cfg.Context.OnDuplicate != "skip" {
		t.Errorf("default on_duplicate: got %s", cfg.Context.OnDuplicate)
	}
	if cfg.Embedding.Provider != ProviderHashing {
		t.Errorf("default provider: got %s", cfg.Embedding.Provider)
	}
	if cfg.LLM.Model != "llama3-8b-8192" || cfg.LLM.MaxTokens != 2048 {
		t.Errorf("llm defaults: got %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("default temperature: got %f", cfg.LLM.Temperature)
	}
	if cfg.LLM.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("default api_key_env: got %s", cfg.LLM.APIKeyEnv)
	}
	if len(cfg.Context.Sources.Extensions) == 0 || cfg.Context.Sources.Extensions[0] != ".txt" {
		t.Errorf("source extensions: got %v", cfg.Context.Sources.Extensions)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_RecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Context: ContextConfig{Sources: SourcesConfig{Directories: []string{"/tmp/docs"}}}}
	ApplyDefaults(cfg)
	if cfg.Context.Sources.Recursive == nil || !*cfg.Context.Sources.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestSourcesConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		s := &SourcesConfig{}
		if got := s.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		s := &SourcesConfig{Recursive: &f}
		if got := s.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestStorageConfig_PersistOrDefault(t *testing.T) {
	s := &StorageConfig{}
	if !s.PersistOrDefault() {
		t.Error("persist should default to true")
	}
	f := false
	s.Persist = &f
	if s.PersistOrDefault() {
		t.Error("persist false should be honored")
	}
}

func TestLLMConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("PMAGENT_TEST_KEY", "secret")
	l := &LLMConfig{APIKeyEnv: "PMAGENT_TEST_KEY"}
	if l.APIKey() != "secret" {
		t.Errorf("APIKey() = %q", l.APIKey())
	}
}

func TestEmbeddingConfig_Identity(t *testing.T) {
	tests := []struct {
		cfg  EmbeddingConfig
		want string
	}{
		{EmbeddingConfig{Provider: ProviderHashing, Model: "ignored", Dimensions: 384}, "hashing:384"},
		{EmbeddingConfig{Dimensions: 64}, "hashing:64"},
		{EmbeddingConfig{Provider: ProviderONNX, ModelPath: "/m/minilm.onnx", Dimensions: 384}, "onnx:/m/minilm.onnx:384"},
		{EmbeddingConfig{Provider: ProviderOpenAI, BaseURL: "http://e", Model: "nomic", Dimensions: 768}, "openai:http://e:nomic:768"},
	}
	for _, tt := range tests {
		if got := tt.cfg.Identity(); got != tt.want {
			t.Errorf("Identity(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	ApplyDefaults(cfg)
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
	if loaded.LLM.Timeout != cfg.LLM.Timeout {
		t.Errorf("loaded llm timeout: got %s", loaded.LLM.Timeout)
	}
}
