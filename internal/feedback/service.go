// Package feedback stores user ratings of agent responses and searches them by text.
package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/models"
	"github.com/hyperjump/pmagent/internal/storage"
)

// DefaultLimit is the page size used when a caller passes a non-positive limit.
const DefaultLimit = 20

// Service persists feedback in SQLite and keeps the full-text index in sync.
type Service struct {
	store  storage.FeedbackStorage
	index  *Index
	logger *zap.Logger
}

// NewService creates a feedback service. index may be nil, which disables Search.
func NewService(store storage.FeedbackStorage, index *Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, index: index, logger: logger}
}

// Store validates and saves fb, assigning its ID. Index failures are logged, not returned,
// since the database is the source of truth.
func (s *Service) Store(ctx context.Context, fb *models.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}
	fb.ID = uuid.New().String()
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return fmt.Errorf("store feedback: %w", err)
	}
	if s.index != nil {
		if err := s.index.Add(ctx, fb); err != nil {
			s.logger.Error("failed to index feedback", zap.String("id", fb.ID), zap.Error(err))
		}
	}
	s.logger.Debug("stored feedback", zap.String("id", fb.ID), zap.String("agent", fb.Agent), zap.Int("rating", fb.Rating))
	return nil
}

// Search returns stored feedback matching query, best match first.
func (s *Service) Search(ctx context.Context, query string, limit int, opts SearchOptions) ([]*models.Feedback, error) {
	if s.index == nil {
		return nil, fmt.Errorf("feedback search is not configured")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	hits, err := s.index.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Feedback, 0, len(hits))
	for _, hit := range hits {
		fb, err := s.store.GetFeedback(ctx, hit.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, nil
}

// List returns feedback newest first.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*models.Feedback, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListFeedback(ctx, offset, limit)
}

// Count returns the number of stored feedback records.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountFeedback(ctx)
}
