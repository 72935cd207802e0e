package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/agent"
	"github.com/hyperjump/pmagent/internal/config"
	"github.com/hyperjump/pmagent/internal/contextstore"
	"github.com/hyperjump/pmagent/internal/embedding"
	"github.com/hyperjump/pmagent/internal/extract"
	"github.com/hyperjump/pmagent/internal/feedback"
	"github.com/hyperjump/pmagent/internal/llm"
	"github.com/hyperjump/pmagent/internal/metrics"
	"github.com/hyperjump/pmagent/internal/retrieval"
	"github.com/hyperjump/pmagent/internal/sources"
	"github.com/hyperjump/pmagent/internal/storage"
	"github.com/hyperjump/pmagent/internal/vector"
)

// Components holds every long-lived dependency of the CLI and server.
type Components struct {
	Config        *config.Config
	Logger        *zap.Logger
	Storage       *storage.SQLiteStorage
	Store         *contextstore.Store
	Retriever     *retrieval.Retriever
	Loader        *sources.Loader
	Agents        *agent.Agents
	Feedback      *feedback.Service
	FeedbackIndex *feedback.Index
	Metrics       *metrics.Metrics
}

// unavailableCompleter stands in for the LLM client when it cannot be configured,
// so the context endpoints keep working without an API key.
type unavailableCompleter struct {
	reason error
}

func (u unavailableCompleter) Complete(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %v", llm.ErrCompletionFailed, u.reason)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Logger: logger, Storage: db, Metrics: metrics.New()}

	embedder, err := embedding.NewFromConfig(&cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	index, err := vector.NewVectorIndex(string(vector.IndexTypeMemory), embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	index.SetModel(cfg.Embedding.Identity())
	if path := cfg.Storage.SnapshotPath; path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if loadErr := index.Load(path); loadErr != nil {
				logger.Warn("vector snapshot load skipped (documents will be re-embedded)", zap.String("path", path), zap.Error(loadErr))
			}
		}
	}

	policy, err := contextstore.ParseDuplicatePolicy(cfg.Context.OnDuplicate)
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		c.Close()
		return nil, err
	}
	storeOpts := []contextstore.Option{
		contextstore.WithDuplicatePolicy(policy),
		contextstore.WithEmbedTimeout(cfg.Embedding.Timeout),
		contextstore.WithCapacity(cfg.Context.Capacity),
		contextstore.WithLogger(logger),
		contextstore.WithMetrics(c.Metrics),
	}
	if cfg.Storage.PersistOrDefault() {
		storeOpts = append(storeOpts, contextstore.WithPersistence(db))
	}
	store, err := contextstore.New(cfg.Context.Collection, embedder, index, storeOpts...)
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		c.Close()
		return nil, fmt.Errorf("failed to initialize context store: %w", err)
	}
	c.Store = store
	if err := store.Restore(context.Background()); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to restore context: %w", err)
	}

	c.Retriever = retrieval.NewFromStore(store,
		retrieval.WithTopK(cfg.Context.TopK),
		retrieval.WithLogger(logger))

	src := cfg.Context.Sources
	c.Loader = sources.NewLoader(store, extract.NewExtractor(),
		sources.WithExtensions(src.Extensions),
		sources.WithMaxParagraphWords(src.MaxParagraphWords),
		sources.WithRecursive(src.RecursiveOrDefault()),
		sources.WithLogger(logger))

	c.FeedbackIndex, err = feedback.NewIndex(cfg.Storage.FeedbackIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize feedback index: %w", err)
	}
	c.Feedback = feedback.NewService(db, c.FeedbackIndex, logger)

	var completer llm.Completer
	client, err := llm.NewClient(&cfg.LLM, cfg.LLM.APIKey(), llm.WithLogger(logger))
	if err != nil {
		logger.Warn("LLM client unavailable; agent endpoints will fail", zap.Error(err))
		completer = unavailableCompleter{reason: err}
	} else {
		completer = client
	}
	c.Agents = agent.New(completer, c.Retriever,
		agent.WithMemory(agent.NewMemory(cfg.LLM.MemorySize)),
		agent.WithLogger(logger),
		agent.WithMetrics(c.Metrics))

	logger.Info("components initialized",
		zap.String("collection", store.Name()),
		zap.Int("documents", store.Len()),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", embedder.Dimensions()))
	return c, nil
}

// SaveSnapshot writes the vector index to the configured snapshot path, if any.
func (c *Components) SaveSnapshot() {
	path := c.Config.Storage.SnapshotPath
	if path == "" || c.Store == nil {
		return
	}
	if err := c.Store.Snapshot(path); err != nil {
		c.Logger.Warn("vector snapshot save failed", zap.String("path", path), zap.Error(err))
	}
}

// Close releases all resources.
func (c *Components) Close() {
	if c.FeedbackIndex != nil {
		_ = c.FeedbackIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}
