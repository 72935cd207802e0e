package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/pmagent/internal/models"
)

// SQLiteStorage implements DocumentStorage and FeedbackStorage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS context_documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		seq INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_context_documents_seq ON context_documents(collection, seq);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		agent TEXT,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveDocuments upserts docs in a transaction. CreatedAt is set when zero.
func (s *SQLiteStorage) SaveDocuments(ctx context.Context, docs []*models.ContextDocument) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO context_documents (collection, id, content, seq, created_at)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM context_documents WHERE collection = ?), ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   content = excluded.content,
		   seq = excluded.seq,
		   created_at = excluded.created_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, doc := range docs {
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, doc.Collection, doc.ID, doc.Content, doc.Collection, doc.CreatedAt); err != nil {
			return fmt.Errorf("save document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteDocuments removes documents from a collection. Unknown IDs are ignored.
func (s *SQLiteStorage) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM context_documents WHERE collection = ? AND id = ?`, collection, id,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListDocuments returns all documents of a collection in insertion order.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, collection string) ([]*models.ContextDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, id, content, created_at
		 FROM context_documents WHERE collection = ? ORDER BY seq`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.ContextDocument
	for rows.Next() {
		var doc models.ContextDocument
		if err := rows.Scan(&doc.Collection, &doc.ID, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of documents in a collection.
func (s *SQLiteStorage) CountDocuments(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM context_documents WHERE collection = ?`, collection,
	).Scan(&count)
	return count, err
}

// CreateFeedback inserts a feedback record. CreatedAt is set to now.
func (s *SQLiteStorage) CreateFeedback(ctx context.Context, fb *models.Feedback) error {
	fb.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, run_id, agent, prompt, response, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.RunID, fb.Agent, fb.Prompt, fb.Response, fb.Rating, fb.CreatedAt,
	)
	return err
}

// GetFeedback returns a feedback record by ID.
func (s *SQLiteStorage) GetFeedback(ctx context.Context, id string) (*models.Feedback, error) {
	var fb models.Feedback
	err := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, agent, prompt, response, rating, created_at
		 FROM feedback WHERE id = ?`, id,
	).Scan(&fb.ID, &fb.RunID, &fb.Agent, &fb.Prompt, &fb.Response, &fb.Rating, &fb.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// ListFeedback returns feedback newest first with offset and limit.
func (s *SQLiteStorage) ListFeedback(ctx context.Context, offset, limit int) ([]*models.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, agent, prompt, response, rating, created_at
		 FROM feedback ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.RunID, &fb.Agent, &fb.Prompt, &fb.Response, &fb.Rating, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &fb)
	}
	return out, rows.Err()
}

// CountFeedback returns the total number of feedback records.
func (s *SQLiteStorage) CountFeedback(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
