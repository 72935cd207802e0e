package embedding

import (
	"context"

	"github.com/hyperjump/pmagent/internal/identity"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder wraps an Embedder with an LRU cache keyed by content digest.
// Concurrent requests for the same uncached text share one call to the inner embedder.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
	group singleflight.Group
}

// NewCachedEmbedder returns inner wrapped with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: NewEmbeddingCache(capacity),
	}
}

// Embed returns the cached embedding for text, calling the inner embedder on a miss.
// Failed calls are not cached. The shared call is detached from any single caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := identity.Digest([]byte(text))
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		emb, err := c.inner.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, emb)
		return emb, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

// EmbedBatch calls Embed for each text.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, c.Embed)
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
