package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"
)

type recordingIngester struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (r *recordingIngester) Ingest(_ context.Context, texts []string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]string(nil), texts...))
	return nil
}

func (r *recordingIngester) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *recordingIngester) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExtensionAllowed(t *testing.T) {
	allowed := []string{".txt", "MD"}
	tests := []struct {
		ext  string
		want bool
	}{
		{".txt", true},
		{".TXT", true},
		{"md", true},
		{".md", true},
		{".pdf", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

// mustLoad fails the test on a load error and returns the paragraph count.
func mustLoad(t *testing.T, l *Loader, path string) int {
	t.Helper()
	n, err := l.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile(%s): %v", path, err)
	}
	return n
}

func TestLoadFile_paragraphs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	writeFile(t, path, "Add SSO login\n\nDark mode\n\n\nImprove onboarding flow\n")

	ing := &recordingIngester{}
	if n := mustLoad(t, NewLoader(ing, nil), path); n != 3 {
		t.Errorf("paragraphs=%d, want 3", n)
	}
	if want := []string{"Add SSO login", "Dark mode", "Improve onboarding flow"}; !reflect.DeepEqual(ing.all(), want) {
		t.Errorf("ingested %q, want %q", ing.all(), want)
	}
}

func TestLoadFile_unchangedSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "first")

	ing := &recordingIngester{}
	l := NewLoader(ing, nil)
	mustLoad(t, l, path)
	if n := mustLoad(t, l, path); n != 0 {
		t.Errorf("unchanged file loaded %d paragraphs", n)
	}
	if ing.calls() != 1 {
		t.Errorf("ingest calls=%d, want 1", ing.calls())
	}

	writeFile(t, path, "first\n\nsecond")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if n := mustLoad(t, l, path); n != 2 {
		t.Errorf("changed file loaded %d paragraphs, want 2", n)
	}
	if ing.calls() != 2 {
		t.Errorf("ingest calls=%d, want 2", ing.calls())
	}
}

func TestLoadFile_errors(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	l := NewLoader(ing, nil, WithExtensions([]string{".txt"}))

	writeFile(t, filepath.Join(dir, "skip.md"), "x")
	sub := filepath.Join(dir, "dir.txt")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		filepath.Join(dir, "skip.md"),
		filepath.Join(dir, "missing.txt"),
		sub,
	} {
		if _, err := l.LoadFile(context.Background(), path); err == nil {
			t.Errorf("LoadFile(%s) should fail", filepath.Base(path))
		}
	}
	if ing.calls() != 0 {
		t.Errorf("ingest calls=%d, want 0", ing.calls())
	}
}

func TestLoadFile_ingestFailureRetried(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello")

	boom := errors.New("boom")
	ing := &recordingIngester{err: boom}
	l := NewLoader(ing, nil)
	if _, err := l.LoadFile(context.Background(), path); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}

	// a failed load is not remembered
	ing.err = nil
	if n := mustLoad(t, l, path); n != 1 {
		t.Errorf("paragraphs=%d, want 1", n)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "b.md"), "beta\n\ngamma")
	writeFile(t, filepath.Join(dir, "ignored.bin"), "zzz")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "delta")

	t.Run("recursive", func(t *testing.T) {
		ing := &recordingIngester{}
		files, paragraphs, err := NewLoader(ing, nil).LoadDirectory(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		if files != 3 || paragraphs != 4 {
			t.Errorf("files=%d paragraphs=%d, want 3 and 4", files, paragraphs)
		}
		got := ing.all()
		sort.Strings(got)
		if want := []string{"alpha", "beta", "delta", "gamma"}; !reflect.DeepEqual(got, want) {
			t.Errorf("ingested %q, want %q", got, want)
		}
	})

	t.Run("flat", func(t *testing.T) {
		ing := &recordingIngester{}
		files, _, err := NewLoader(ing, nil, WithRecursive(false)).LoadDirectory(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		if files != 2 {
			t.Errorf("files=%d, want 2", files)
		}
		for _, text := range ing.all() {
			if text == "delta" {
				t.Error("flat load descended into a subdirectory")
			}
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		l := NewLoader(&recordingIngester{}, nil)
		if _, _, err := l.LoadDirectory(context.Background(), filepath.Join(dir, "a.txt")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "one\n\ntwo")
	writeFile(t, filepath.Join(dir, "b.txt"), "three")

	l := NewLoader(&recordingIngester{}, nil)
	n, err := l.LoadPath(context.Background(), filepath.Join(dir, "a.txt"))
	if err != nil || n != 2 {
		t.Fatalf("file: n=%d err=%v", n, err)
	}

	n, err = l.LoadPath(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("directory: n=%d, want 1 (a.txt is unchanged and skipped)", n)
	}

	if _, err := l.LoadPath(context.Background(), filepath.Join(dir, "nope")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestLoadFile_longParagraphWindowed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.txt")
	writeFile(t, path, "a b c d e f g")

	ing := &recordingIngester{}
	if n := mustLoad(t, NewLoader(ing, nil, WithMaxParagraphWords(3)), path); n != 3 {
		t.Errorf("paragraphs=%d, want 3", n)
	}
	if want := []string{"a b c", "d e f", "g"}; !reflect.DeepEqual(ing.all(), want) {
		t.Errorf("ingested %q, want %q", ing.all(), want)
	}
}
