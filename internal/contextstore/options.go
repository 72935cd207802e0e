package contextstore

import (
	"fmt"
	"time"

	"github.com/hyperjump/pmagent/internal/metrics"
	"github.com/hyperjump/pmagent/internal/storage"
	"go.uber.org/zap"
)

// DuplicatePolicy decides what Ingest does with a text whose identity key is already present.
type DuplicatePolicy string

const (
	// DuplicateSkip leaves the stored document untouched.
	DuplicateSkip DuplicatePolicy = "skip"
	// DuplicateOverwrite replaces the stored embedding and refreshes CreatedAt.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	// DuplicateError rejects the whole batch with ErrDuplicate.
	DuplicateError DuplicatePolicy = "error"
)

// DefaultEmbedTimeout bounds every call to the embedding function.
const DefaultEmbedTimeout = 10 * time.Second

// ParseDuplicatePolicy maps a config value to a policy. Empty means DuplicateSkip.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateSkip:
		return DuplicateSkip, nil
	case DuplicateOverwrite, DuplicateError:
		return DuplicatePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (supported: skip, overwrite, error)", s)
	}
}

// Option configures a Store.
type Option func(*Store)

// WithDuplicatePolicy sets how Ingest treats texts already in the collection.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithEmbedTimeout bounds each embedding call. Non-positive values keep the default.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.embedTimeout = d
		}
	}
}

// WithCapacity limits the collection to n documents, evicting the least recently
// added ones first. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithPersistence writes documents through to st so they survive restarts (see Restore).
func WithPersistence(st storage.DocumentStorage) Option {
	return func(s *Store) {
		s.persist = st
	}
}

// WithLogger sets the logger for the store.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records ingestion and query metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}
