// Package storage defines the persistence interfaces for context documents and feedback.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pmagent/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DocumentStorage persists the documents of context collections.
type DocumentStorage interface {
	// SaveDocuments inserts or replaces documents in one transaction.
	// A replaced document moves to the end of its collection's insertion order.
	SaveDocuments(ctx context.Context, docs []*models.ContextDocument) error
	DeleteDocuments(ctx context.Context, collection string, ids []string) error
	// ListDocuments returns a collection's documents in insertion order.
	ListDocuments(ctx context.Context, collection string) ([]*models.ContextDocument, error)
	CountDocuments(ctx context.Context, collection string) (int64, error)
	Close() error
}

// FeedbackStorage persists agent feedback.
type FeedbackStorage interface {
	CreateFeedback(ctx context.Context, fb *models.Feedback) error
	GetFeedback(ctx context.Context, id string) (*models.Feedback, error)
	ListFeedback(ctx context.Context, offset, limit int) ([]*models.Feedback, error)
	CountFeedback(ctx context.Context) (int64, error)
	Close() error
}
