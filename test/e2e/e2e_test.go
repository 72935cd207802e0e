package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/pmagent/internal/contextstore"
	"github.com/hyperjump/pmagent/internal/embedding"
	"github.com/hyperjump/pmagent/internal/retrieval"
	"github.com/hyperjump/pmagent/internal/sources"
	"github.com/hyperjump/pmagent/internal/storage"
	"github.com/hyperjump/pmagent/internal/vector"
)

const (
	e2eCollection = "project_context"
	e2eDimensions = 384
)

func newStore(t *testing.T, opts ...contextstore.Option) *contextstore.Store {
	t.Helper()
	idx, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	store, err := contextstore.New(e2eCollection, embedding.NewHashingEmbedder(e2eDimensions), idx, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runCases(t *testing.T, store *contextstore.Store, corpus *Corpus) {
	t.Helper()
	ctx := context.Background()
	for _, tc := range corpus.Cases {
		tc := tc
		t.Run(tc.Query, func(t *testing.T) {
			got, err := store.QueryNearestText(ctx, tc.Query, 1)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			want := corpus.Text(tc.ExpectedKey)
			if len(got) != 1 || got[0] != want {
				t.Errorf("query %q: expected paragraph %q first, got %q", tc.Query, tc.ExpectedKey, got)
			}
		})
	}
}

func TestE2E_NearestParagraph(t *testing.T) {
	corpus := BuildCorpus()
	store := newStore(t)
	if err := store.Ingest(context.Background(), corpus.Texts()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if store.Len() != len(corpus.Paragraphs) {
		t.Fatalf("expected %d documents, got %d", len(corpus.Paragraphs), store.Len())
	}
	runCases(t, store, corpus)
}

func TestE2E_ParagraphIsItsOwnNearest(t *testing.T) {
	corpus := BuildCorpus()
	store := newStore(t)
	ctx := context.Background()
	if err := store.Ingest(ctx, corpus.Texts()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	for _, p := range corpus.Paragraphs {
		matches, err := store.QueryNearest(ctx, p.Text, 1)
		if err != nil {
			t.Fatalf("query %q: %v", p.Key, err)
		}
		if len(matches) != 1 || matches[0].Content != p.Text {
			t.Errorf("paragraph %q is not its own nearest match", p.Key)
			continue
		}
		if matches[0].Distance > 1e-5 {
			t.Errorf("paragraph %q: distance to itself = %f", p.Key, matches[0].Distance)
		}
	}
}

func TestE2E_RetrieveContextForFeatures(t *testing.T) {
	corpus := BuildCorpus()
	store := newStore(t)
	if err := store.Ingest(context.Background(), corpus.Texts()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	r := retrieval.NewFromStore(store, retrieval.WithTopK(1))
	got, err := r.RetrieveContext(context.Background(), []string{"Slack integration", "dark theme"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != corpus.Text("integrations") || lines[1] != corpus.Text("darkmode") {
		t.Errorf("unexpected context order: %q", lines)
	}
}

// TestE2E_FileLoadingRetrieval writes the corpus across every generated file type, loads the
// directory through the sources loader, and runs the same query cases.
func TestE2E_FileLoadingRetrieval(t *testing.T) {
	corpus := BuildCorpus()
	dir := t.TempDir()
	docDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(filepath.Join(docDir, "notes"), 0755); err != nil {
		t.Fatal(err)
	}

	exts := SupportedFileExtensions
	groups := make([][]string, len(exts))
	for i, p := range corpus.Paragraphs {
		groups[i%len(exts)] = append(groups[i%len(exts)], p.Text)
	}
	for i, ext := range exts {
		content, err := WriteMinimalFile(ext, groups[i])
		if err != nil {
			t.Fatalf("fixture %s: %v", ext, err)
		}
		sub := docDir
		if i%2 == 1 {
			sub = filepath.Join(docDir, "notes")
		}
		if err := os.WriteFile(filepath.Join(sub, "context"+ext), content, 0644); err != nil {
			t.Fatal(err)
		}
	}
	// not in the extension list, must be ignored
	if err := os.WriteFile(filepath.Join(docDir, "build.log"), []byte("Slack integration failed"), 0644); err != nil {
		t.Fatal(err)
	}

	store := newStore(t)
	loader := sources.NewLoader(store, nil, sources.WithExtensions(exts))
	files, paragraphs, err := loader.LoadDirectory(context.Background(), docDir)
	if err != nil {
		t.Fatalf("load directory: %v", err)
	}
	if files != len(exts) {
		t.Errorf("expected %d files loaded, got %d", len(exts), files)
	}
	if paragraphs != len(corpus.Paragraphs) || store.Len() != len(corpus.Paragraphs) {
		t.Fatalf("expected %d paragraphs, loaded %d, stored %d", len(corpus.Paragraphs), paragraphs, store.Len())
	}
	runCases(t, store, corpus)

	// unchanged files are skipped on reload
	_, paragraphs, err = loader.LoadDirectory(context.Background(), docDir)
	if err != nil {
		t.Fatalf("reload directory: %v", err)
	}
	if paragraphs != 0 {
		t.Errorf("expected no paragraphs reloaded, got %d", paragraphs)
	}
}

// TestE2E_RestoreAfterRestart persists the collection to SQLite and the index snapshot, then
// rebuilds the store from both and checks retrieval is unchanged.
func TestE2E_RestoreAfterRestart(t *testing.T) {
	corpus := BuildCorpus()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "pmagent.db")
	snapshot := filepath.Join(dir, "index.snapshot")
	ctx := context.Background()

	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	first := newStore(t, contextstore.WithPersistence(db))
	if err := first.Ingest(ctx, corpus.Texts()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := first.Snapshot(snapshot); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	idx, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(snapshot); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	second, err := contextstore.New(e2eCollection, embedding.NewHashingEmbedder(e2eDimensions), idx,
		contextstore.WithPersistence(db))
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if second.Len() != len(corpus.Paragraphs) {
		t.Fatalf("expected %d documents after restore, got %d", len(corpus.Paragraphs), second.Len())
	}
	runCases(t, second, corpus)
}
