// Package vector provides the vector index behind the context store.
package vector

import "context"

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	// Add inserts vectors with the given IDs. An existing ID has its vector replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Has(id string) bool
	// IDs returns the stored IDs in insertion order.
	IDs() []string
	// SetModel tags the index with the embedding model its vectors come from.
	// Load rejects snapshots written under a different tag.
	SetModel(model string)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
