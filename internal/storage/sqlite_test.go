package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pmagent/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	docs := []*models.ContextDocument{
		{ID: "ctx:1", Collection: "pm_context", Content: "Add SSO login"},
		{ID: "ctx:2", Collection: "pm_context", Content: "Improve onboarding flow"},
		{ID: "ctx:1", Collection: "other", Content: "Add SSO login"},
	}
	if err := store.SaveDocuments(ctx, docs); err != nil {
		t.Fatal(err)
	}
	if docs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	list, err := store.ListDocuments(ctx, "pm_context")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "ctx:1" || list[1].ID != "ctx:2" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if n, _ := store.CountDocuments(ctx, "other"); n != 1 {
		t.Errorf("other collection count = %d", n)
	}

	// Replacing moves the document to the end of insertion order.
	if err := store.SaveDocuments(ctx, []*models.ContextDocument{
		{ID: "ctx:1", Collection: "pm_context", Content: "Add SSO login"},
	}); err != nil {
		t.Fatal(err)
	}
	list, _ = store.ListDocuments(ctx, "pm_context")
	if len(list) != 2 || list[1].ID != "ctx:1" {
		t.Errorf("replaced document should be last: %+v", list)
	}

	if err := store.DeleteDocuments(ctx, "pm_context", []string{"ctx:2", "missing"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountDocuments(ctx, "pm_context"); n != 1 {
		t.Errorf("count after delete = %d", n)
	}
}

func TestSQLiteStorage_EmptyBatches(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.SaveDocuments(ctx, nil); err != nil {
		t.Error(err)
	}
	if err := store.DeleteDocuments(ctx, "c", nil); err != nil {
		t.Error(err)
	}
	list, err := store.ListDocuments(ctx, "c")
	if err != nil || len(list) != 0 {
		t.Errorf("list=%v err=%v", list, err)
	}
}

func TestSQLiteStorage_Feedback(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	fb := &models.Feedback{ID: "fb1", RunID: "run1", Agent: "prioritization", Prompt: "p", Response: "r", Rating: 4}
	if err := store.CreateFeedback(ctx, fb); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetFeedback(ctx, "fb1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Rating != 4 || got.Agent != "prioritization" {
		t.Errorf("got %+v", got)
	}

	if _, err := store.GetFeedback(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	bad := &models.Feedback{ID: "fb2", Prompt: "p", Response: "r", Rating: 9}
	if err := store.CreateFeedback(ctx, bad); err == nil {
		t.Error("rating outside 1..5 should violate the check constraint")
	}

	list, err := store.ListFeedback(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 feedback, got %d", len(list))
	}
	if n, _ := store.CountFeedback(ctx); n != 1 {
		t.Errorf("count=%d", n)
	}
}
