package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pmagent/data/pmagent.db"
	}
	if cfg.Storage.FeedbackIndexPath == "" {
		cfg.Storage.FeedbackIndexPath = "/usr/local/var/pmagent/data/indices/feedback"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHashing
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/pmagent/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
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
		cfg.Embedding.Timeout = 10 * time.Second
	}
	if cfg.Context.Collection == "" {
		cfg.Context.Collection = "pm_context"
	}
	if cfg.Context.OnDuplicate == "" {
		cfg.Context.OnDuplicate = "skip"
	}
	if cfg.Context.TopK == 0 {
		cfg.Context.TopK = 2
	}
	if cfg.Context.Sources.Extensions == nil {
		cfg.Context.Sources.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}
	}
	if cfg.Context.Sources.MaxParagraphWords == 0 {
		cfg.Context.Sources.MaxParagraphWords = 200
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Context.Sources.Directories) > 0 && cfg.Context.Sources.Recursive == nil {
		t := true
		cfg.Context.Sources.Recursive = &t
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3-8b-8192"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 2
	}
	if cfg.LLM.MemorySize == 0 {
		cfg.LLM.MemorySize = 20
	}
}
