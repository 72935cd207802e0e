// Package embedding provides the text embedding functions used by the context store:
// a deterministic hashing embedder, an ONNX model embedder, and an OpenAI-compatible
// remote embedder, plus an LRU cache in front of any of them.
package embedding

import "context"

// Embedder produces vector embeddings for text.
// Implementations return L2-normalized vectors so that inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach calls embed for each text in order and stops at the first error.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
