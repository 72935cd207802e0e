package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/pmagent/internal/storage"
)

// statusResponse mirrors GET /api/v1/status.
type statusResponse struct {
	Collection         string         `json:"collection"`
	Documents          int            `json:"documents"`
	DuplicatePolicy    string         `json:"duplicate_policy"`
	TopK               int            `json:"top_k"`
	Feedback           *int64         `json:"feedback,omitempty"`
	AgentMemory        map[string]int `json:"agent_memory,omitempty"`
	WatchedDirectories []string       `json:"watched_directories,omitempty"`
	DiskUsageBytes     *int64         `json:"disk_usage_bytes,omitempty"`
	Config             *statusConfig  `json:"config,omitempty"`
}

type statusConfig struct {
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	LLMModel            string `json:"llm_model"`
	Capacity            int    `json:"capacity"`
	DatabasePath        string `json:"database_path"`
	SnapshotPath        string `json:"snapshot_path"`
}

func localStatus(c *Components) statusResponse {
	cfg := c.Config
	st := statusResponse{
		Collection:      c.Store.Name(),
		Documents:       c.Store.Len(),
		DuplicatePolicy: string(c.Store.Policy()),
		TopK:            c.Retriever.TopK(),
		AgentMemory:     c.Agents.Memory().Counts(),
		Config: &statusConfig{
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			LLMModel:            cfg.LLM.Model,
			Capacity:            cfg.Context.Capacity,
			DatabasePath:        cfg.Storage.DatabasePath,
			SnapshotPath:        cfg.Storage.SnapshotPath,
		},
	}
	if n, err := c.Feedback.Count(context.Background()); err == nil {
		st.Feedback = &n
	}
	paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.SnapshotPath, cfg.Storage.FeedbackIndexPath)
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = &n
	}
	return st
}

func writeStatusText(w io.Writer, st *statusResponse) {
	fmt.Fprintf(w, "collection:         %s\n", st.Collection)
	fmt.Fprintf(w, "documents:          %d   # context documents in the collection\n", st.Documents)
	fmt.Fprintf(w, "duplicate_policy:   %s\n", st.DuplicatePolicy)
	fmt.Fprintf(w, "top_k:              %d   # results per retrieved item\n", st.TopK)
	if st.Feedback != nil {
		fmt.Fprintf(w, "feedback:           %d\n", *st.Feedback)
	}
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + snapshot + feedback index\n", *st.DiskUsageBytes)
	}
	for _, dir := range st.WatchedDirectories {
		fmt.Fprintf(w, "watching:           %s\n", dir)
	}
	if st.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding_provider: %s\n", st.Config.EmbeddingProvider)
		if st.Config.EmbeddingDimensions > 0 {
			fmt.Fprintf(w, "embedding_dims:     %d\n", st.Config.EmbeddingDimensions)
		}
		fmt.Fprintf(w, "llm_model:          %s\n", st.Config.LLMModel)
		if st.Config.Capacity > 0 {
			fmt.Fprintf(w, "capacity:           %d\n", st.Config.Capacity)
		}
		if st.Config.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", st.Config.DatabasePath)
		}
		if st.Config.SnapshotPath != "" {
			fmt.Fprintf(w, "snapshot_path:      %s\n", st.Config.SnapshotPath)
		}
	}
}
