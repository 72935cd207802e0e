// Package retrieval assembles a single context blob from several queries against a context store.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/pmagent/internal/contextstore"
	"go.uber.org/zap"
)

// DefaultTopK is the number of documents retrieved per query item.
const DefaultTopK = 2

// Searcher answers nearest-neighbor text queries.
type Searcher interface {
	QueryNearestText(ctx context.Context, text string, k int) ([]string, error)
}

// Ingester adds texts to a collection.
type Ingester interface {
	Ingest(ctx context.Context, texts []string) error
}

// Retriever turns lists of query items into newline-joined context.
type Retriever struct {
	searcher Searcher
	ingester Ingester
	topK     int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK overrides the per-item result count. Non-positive values keep DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithIngester enables AddContext.
func WithIngester(i Ingester) Option {
	return func(r *Retriever) {
		r.ingester = i
	}
}

// WithLogger sets the logger for the retriever.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Retriever over searcher.
func New(searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		searcher: searcher,
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromStore returns a Retriever that both queries and ingests through store.
func NewFromStore(store *contextstore.Store, opts ...Option) *Retriever {
	return New(store, append([]Option{WithIngester(store)}, opts...)...)
}

// TopK returns the per-item result count.
func (r *Retriever) TopK() int {
	return r.topK
}

// RetrieveContext queries each item in order and joins all results with "\n".
// Results keep per-item nearest-first order and are not deduplicated across items.
// An empty item list yields "". The first failing query aborts the call.
func (r *Retriever) RetrieveContext(ctx context.Context, items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	for i, item := range items {
		if !utf8.ValidString(item) {
			return "", fmt.Errorf("%w: item %d is not valid UTF-8", contextstore.ErrInvalidInput, i)
		}
	}

	var parts []string
	for _, item := range items {
		texts, err := r.searcher.QueryNearestText(ctx, item, r.topK)
		if err != nil {
			return "", fmt.Errorf("retrieve context for %q: %w", item, err)
		}
		parts = append(parts, texts...)
	}
	r.logger.Debug("retrieved context", zap.Int("items", len(items)), zap.Int("documents", len(parts)))
	return strings.Join(parts, "\n"), nil
}

// AddContext ingests texts into the underlying collection.
func (r *Retriever) AddContext(ctx context.Context, texts []string) error {
	if r.ingester == nil {
		return fmt.Errorf("retriever has no ingester")
	}
	return r.ingester.Ingest(ctx, texts)
}
