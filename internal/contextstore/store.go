// Package contextstore holds a named collection of context documents and answers
// nearest-neighbor queries over their embeddings.
package contextstore

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/pmagent/internal/embedding"
	"github.com/hyperjump/pmagent/internal/identity"
	"github.com/hyperjump/pmagent/internal/metrics"
	"github.com/hyperjump/pmagent/internal/models"
	"github.com/hyperjump/pmagent/internal/storage"
	"github.com/hyperjump/pmagent/internal/vector"
	"github.com/hyperjump/pmagent/pkg/utils"
	"go.uber.org/zap"
)

// Document is a stored unit of context. Its ID is identity.Key(Content).
type Document = models.ContextDocument

// Match is one nearest-neighbor hit. Distance is cosine distance in [0, 2]; smaller is closer.
type Match struct {
	Document
	Distance float64
}

// Store is a named collection of documents and their embeddings.
// Queries run concurrently; ingestion is serialized and excludes queries only
// while the collection is being mutated, not while texts are embedded.
type Store struct {
	name         string
	embedder     embedding.Embedder
	index        vector.VectorIndex
	policy       DuplicatePolicy
	embedTimeout time.Duration
	capacity     int
	persist      storage.DocumentStorage
	logger       *zap.Logger
	metrics      *metrics.Metrics

	ingestMu sync.Mutex
	mu       sync.RWMutex
	docs     map[string]*Document
	order    []string // insertion order, oldest first
}

// New creates an empty store. The index must have the embedder's dimension.
func New(name string, embedder embedding.Embedder, index vector.VectorIndex, opts ...Option) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidInput)
	}
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("embedder and index are required")
	}
	if embedder.Dimensions() != index.Dimensions() {
		return nil, fmt.Errorf("dimension mismatch: embedder %d, index %d", embedder.Dimensions(), index.Dimensions())
	}
	s := &Store{
		name:         name,
		embedder:     embedder,
		index:        index,
		policy:       DuplicateSkip,
		embedTimeout: DefaultEmbedTimeout,
		logger:       zap.NewNop(),
		docs:         make(map[string]*Document),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseDuplicatePolicy(string(s.policy)); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the collection name.
func (s *Store) Name() string {
	return s.name
}

// Policy returns the duplicate policy in effect.
func (s *Store) Policy() DuplicatePolicy {
	return s.policy
}

// Len returns the number of documents in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns the document with the given identity key.
func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// Documents returns a copy of all documents in insertion order.
func (s *Store) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.docs[id])
	}
	return out
}

// Ingest embeds texts and adds them to the collection. Empty strings are valid documents.
// Texts already present (or repeated within the batch) follow the duplicate policy.
// All embeddings are computed before anything is stored: if embedding fails the
// collection is unchanged and the error wraps ErrRetrievalUnavailable.
func (s *Store) Ingest(ctx context.Context, texts []string) error {
	for i, text := range texts {
		if !utf8.ValidString(text) {
			return fmt.Errorf("%w: text %d is not valid UTF-8", ErrInvalidInput, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	pending, skipped, err := s.plan(texts)
	if err != nil {
		return err
	}
	if skipped > 0 {
		s.logger.Debug("skipped duplicate context", zap.String("collection", s.name), zap.Int("count", skipped))
		if s.metrics != nil {
			s.metrics.DuplicatesSkipped.WithLabelValues(s.name).Add(float64(skipped))
		}
	}
	if len(pending) == 0 {
		return nil
	}

	contents := make([]string, len(pending))
	for i, doc := range pending {
		contents[i] = doc.Content
	}
	vectors, err := s.embed(ctx, "ingest", contents)
	if err != nil {
		return err
	}

	ids := make([]string, len(pending))
	now := time.Now()
	for i, doc := range pending {
		doc.CreatedAt = now
		ids[i] = doc.ID
	}
	fresh := s.unknown(ids)
	if s.persist != nil {
		if err := s.persist.SaveDocuments(ctx, pending); err != nil {
			return fmt.Errorf("persist documents: %w", err)
		}
	}

	s.mu.Lock()
	if err := s.index.Add(ctx, ids, vectors); err != nil {
		s.mu.Unlock()
		s.rollback(ctx, fresh)
		return fmt.Errorf("%w: index documents: %w", ErrRetrievalUnavailable, err)
	}
	for _, doc := range pending {
		if _, exists := s.docs[doc.ID]; exists {
			s.removeFromOrder(doc.ID)
		}
		s.docs[doc.ID] = doc
		s.order = append(s.order, doc.ID)
	}
	evicted := s.evict(ctx)
	size := len(s.docs)
	s.mu.Unlock()

	if len(evicted) > 0 && s.persist != nil {
		if err := s.persist.DeleteDocuments(ctx, s.name, evicted); err != nil {
			s.logger.Error("failed to delete evicted documents", zap.String("collection", s.name), zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.DocumentsIngested.WithLabelValues(s.name).Add(float64(len(pending)))
		s.metrics.DocumentsEvicted.WithLabelValues(s.name).Add(float64(len(evicted)))
		s.metrics.CollectionSize.WithLabelValues(s.name).Set(float64(size))
	}
	s.logger.Debug("ingested context",
		zap.String("collection", s.name),
		zap.Int("added", len(pending)),
		zap.Int("evicted", len(evicted)),
		zap.Int("size", size))
	return nil
}

// unknown returns the ids not yet in the collection.
func (s *Store) unknown(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range ids {
		if _, ok := s.docs[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// rollback removes rows persisted for documents that never reached the index.
// Overwritten rows keep their content, so only new ids are removed.
func (s *Store) rollback(ctx context.Context, ids []string) {
	if s.persist == nil || len(ids) == 0 {
		return
	}
	if err := s.persist.DeleteDocuments(context.WithoutCancel(ctx), s.name, ids); err != nil {
		s.logger.Error("failed to roll back persisted documents", zap.String("collection", s.name), zap.Error(err))
	}
}

// plan resolves duplicates and returns the documents to write.
func (s *Store) plan(texts []string) ([]*Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(texts))
	var pending []*Document
	skipped := 0
	for _, text := range texts {
		id := identity.Key(text)
		_, stored := s.docs[id]
		if seen[id] || stored {
			switch s.policy {
			case DuplicateError:
				return nil, 0, fmt.Errorf("%w: %s", ErrDuplicate, utils.Truncate(text, 60))
			case DuplicateSkip:
				skipped++
				continue
			}
			if seen[id] {
				// same key means same content; the first occurrence already covers it
				continue
			}
		}
		seen[id] = true
		pending = append(pending, &Document{ID: id, Collection: s.name, Content: text})
	}
	return pending, skipped, nil
}

// evict drops the oldest documents beyond capacity. Caller holds s.mu.
func (s *Store) evict(ctx context.Context) []string {
	if s.capacity <= 0 || len(s.order) <= s.capacity {
		return nil
	}
	n := len(s.order) - s.capacity
	evicted := make([]string, n)
	copy(evicted, s.order[:n])
	s.order = append([]string(nil), s.order[n:]...)
	for _, id := range evicted {
		delete(s.docs, id)
	}
	if err := s.index.Remove(ctx, evicted); err != nil {
		s.logger.Error("failed to remove evicted vectors", zap.String("collection", s.name), zap.Error(err))
	}
	return evicted
}

func (s *Store) removeFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// QueryNearest returns at most min(k, Len()) documents closest to text, nearest first.
// k <= 0 or an empty collection yields an empty result without calling the embedder.
func (s *Store) QueryNearest(ctx context.Context, text string, k int) ([]Match, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: query is not valid UTF-8", ErrInvalidInput)
	}
	if k <= 0 || s.Len() == 0 {
		return []Match{}, nil
	}

	start := time.Now()
	matches, err := s.queryNearest(ctx, text, k)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.Queries.WithLabelValues(s.name, status).Inc()
		s.metrics.QueryDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	}
	return matches, err
}

func (s *Store) queryNearest(ctx context.Context, text string, k int) ([]Match, error) {
	vectors, err := s.embed(ctx, "query", []string{text})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := s.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrRetrievalUnavailable, err)
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		doc, ok := s.docs[r.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Document: *doc,
			Distance: clampDistance(1 - r.Score),
		})
	}
	return matches, nil
}

// QueryNearestText is QueryNearest returning only document contents.
func (s *Store) QueryNearestText(ctx context.Context, text string, k int) ([]string, error) {
	matches, err := s.QueryNearest(ctx, text, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Content
	}
	return out, nil
}

// embed runs one bounded batch call to the embedding function and checks its output.
func (s *Store) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if err == nil {
		dims := s.index.Dimensions()
		for _, v := range vectors {
			if len(v) != dims {
				err = fmt.Errorf("embedder returned dimension %d, expected %d", len(v), dims)
				break
			}
		}
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.EmbeddingErrors.WithLabelValues(op).Inc()
		}
		return nil, fmt.Errorf("%w: embed: %w", ErrRetrievalUnavailable, err)
	}
	return vectors, nil
}

// Restore loads the collection's documents from persistent storage. Vectors already
// in the index (for example from a loaded snapshot) are reused; the rest are re-embedded.
// Index entries without a stored document are dropped. Without persistence Restore is a no-op.
func (s *Store) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	stored, err := s.persist.ListDocuments(ctx, s.name)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	var missingIDs, missingTexts []string
	keep := make(map[string]bool, len(stored))
	for _, doc := range stored {
		keep[doc.ID] = true
		if !s.index.Has(doc.ID) {
			missingIDs = append(missingIDs, doc.ID)
			missingTexts = append(missingTexts, doc.Content)
		}
	}
	var vectors [][]float32
	if len(missingTexts) > 0 {
		if vectors, err = s.embed(ctx, "restore", missingTexts); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(missingIDs) > 0 {
		if err := s.index.Add(ctx, missingIDs, vectors); err != nil {
			return fmt.Errorf("%w: index documents: %w", ErrRetrievalUnavailable, err)
		}
	}
	s.docs = make(map[string]*Document, len(stored))
	s.order = make([]string, 0, len(stored))
	for _, doc := range stored {
		s.docs[doc.ID] = doc
		s.order = append(s.order, doc.ID)
	}
	if stale := s.staleIndexIDs(stored, keep); len(stale) > 0 {
		if err := s.index.Remove(ctx, stale); err != nil {
			return fmt.Errorf("remove stale vectors: %w", err)
		}
	}
	if s.metrics != nil {
		s.metrics.CollectionSize.WithLabelValues(s.name).Set(float64(len(s.docs)))
	}
	s.logger.Info("restored context collection",
		zap.String("collection", s.name),
		zap.Int("documents", len(stored)),
		zap.Int("reembedded", len(missingIDs)))
	return nil
}

// staleIndexIDs lists index entries with no stored document.
func (s *Store) staleIndexIDs(stored []*Document, keep map[string]bool) []string {
	if s.index.Size() == len(stored) {
		return nil
	}
	var stale []string
	for _, id := range s.index.IDs() {
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	return stale
}

// Snapshot writes the vector index to path.
func (s *Store) Snapshot(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Save(path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Close closes the index and the embedder.
func (s *Store) Close() error {
	if err := s.index.Close(); err != nil {
		return err
	}
	return s.embedder.Close()
}

func clampDistance(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}
