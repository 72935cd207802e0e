package embedding

import (
	"fmt"

	"github.com/hyperjump/pmagent/internal/config"
	"go.uber.org/zap"
)

// NewFromConfig builds the embedder selected by cfg.Provider and wraps it in a cache.
// A provider that cannot be initialized is an error; there is no fallback, since
// vectors from different models must never be compared.
func NewFromConfig(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case config.ProviderHashing, "":
		inner = NewHashingEmbedder(cfg.Dimensions)
	case config.ProviderONNX:
		onnxEmbedder, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("load ONNX model %s: %w", cfg.ModelPath, err)
		}
		inner = onnxEmbedder
	case config.ProviderOpenAI:
		remote, err := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey(),
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = remote
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if logger != nil {
		logger.Debug("embedder ready", zap.String("identity", cfg.Identity()))
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
