package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/pmagent/pkg/utils"
)

// emptyTerm stands in for text with no terms so that empty documents still match each other.
const emptyTerm = "\x00"

// HashingEmbedder maps text to a fixed-dimension bag-of-terms vector using
// signed feature hashing. It needs no model files, is deterministic across runs,
// and ranks documents sharing exact terms with the query highest.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder with the given dimensions (384 when <= 0).
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the normalized term vector of text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Terms(text)
	if len(terms) == 0 {
		terms = []string{emptyTerm}
	}
	emb := make([]float32, e.dimensions)
	for _, term := range terms {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimensions))
		if sum>>63 == 1 {
			emb[bucket]--
		} else {
			emb[bucket]++
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
