// Package config provides configuration loading and structs for the pmagent server.
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
	Context   ContextConfig   `yaml:"context"`
	LLM       LLMConfig       `yaml:"llm"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, vector snapshot, and feedback index.
// An empty SnapshotPath keeps the collection in memory only.
type StorageConfig struct {
	DatabasePath      string `yaml:"database_path"`
	SnapshotPath      string `yaml:"snapshot_path"`
	FeedbackIndexPath string `yaml:"feedback_index_path"`
	Persist           *bool  `yaml:"persist"`
}

// PersistOrDefault reports whether context documents are written to the database; defaults to true.
func (s *StorageConfig) PersistOrDefault() bool {
	if s.Persist != nil {
		return *s.Persist
	}
	return true
}

// Embedding providers.
const (
	ProviderHashing = "hashing"
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
)

// EmbeddingConfig selects and configures the embedding function.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	ModelPath  string        `yaml:"model_path"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ContextConfig holds context collection and retrieval settings.
type ContextConfig struct {
	Collection  string        `yaml:"collection"`
	OnDuplicate string        `yaml:"on_duplicate"`
	Capacity    int           `yaml:"capacity"`
	TopK        int           `yaml:"top_k"`
	Sources     SourcesConfig `yaml:"sources"`
}

// SourcesConfig holds directories whose files are loaded into the collection.
type SourcesConfig struct {
	Directories       []string `yaml:"directories"`
	Extensions        []string `yaml:"extensions"`
	Recursive         *bool    `yaml:"recursive"`
	Watch             bool     `yaml:"watch"`
	MaxParagraphWords int      `yaml:"max_paragraph_words"`
}

// RecursiveOrDefault returns whether to walk directories recursively; defaults to true when unset.
func (s *SourcesConfig) RecursiveOrDefault() bool {
	if s.Recursive != nil {
		return *s.Recursive
	}
	return true
}

// LLMConfig holds chat completion settings for an OpenAI-compatible API (Groq by default).
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MemorySize        int           `yaml:"memory_size"`
}

// APIKey returns the key read from the environment variable named by APIKeyEnv.
func (l *LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// APIKey returns the key read from the environment variable named by APIKeyEnv.
func (e *EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// Identity names the embedding function the config selects. Vectors produced under
// one identity are not comparable with vectors produced under another.
func (e *EmbeddingConfig) Identity() string {
	switch e.Provider {
	case ProviderONNX:
		return fmt.Sprintf("onnx:%s:%d", e.ModelPath, e.Dimensions)
	case ProviderOpenAI:
		return fmt.Sprintf("openai:%s:%s:%d", e.BaseURL, e.Model, e.Dimensions)
	default:
		return fmt.Sprintf("hashing:%d", e.Dimensions)
	}
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
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Storage.FeedbackIndexPath = expandPath(cfg.Storage.FeedbackIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Context.Sources.Directories {
		cfg.Context.Sources.Directories[i] = expandPath(cfg.Context.Sources.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects settings that have no sensible default.
func Validate(cfg *Config) error {
	switch cfg.Embedding.Provider {
	case ProviderHashing, ProviderONNX, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embedding provider: %s (supported: hashing, onnx, openai)", cfg.Embedding.Provider)
	}
	switch cfg.Context.OnDuplicate {
	case "skip", "overwrite", "error":
	default:
		return fmt.Errorf("unknown on_duplicate policy: %s (supported: skip, overwrite, error)", cfg.Context.OnDuplicate)
	}
	if cfg.Context.Capacity < 0 {
		return fmt.Errorf("context capacity must not be negative")
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
// other relative paths are relative to the home directory. Empty paths stay empty.
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
