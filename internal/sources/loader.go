package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/extract"
	"github.com/hyperjump/pmagent/internal/identity"
)

// Ingester adds texts to a context collection.
type Ingester interface {
	Ingest(ctx context.Context, texts []string) error
}

// fileState identifies a file version for incremental loading.
type fileState struct {
	mtime int64
	size  int64
}

// Loader reads source files and ingests their paragraphs.
type Loader struct {
	ingester   Ingester
	extractor  *extract.Extractor
	extensions []string
	maxWords   int
	recursive  bool
	logger     *zap.Logger

	mu     sync.Mutex
	loaded map[string]fileState // identity.FileKey -> last loaded version
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtensions restricts loading to files with these extensions (empty = extract.Extensions).
func WithExtensions(exts []string) LoaderOption {
	return func(l *Loader) {
		if len(exts) > 0 {
			l.extensions = exts
		}
	}
}

// WithMaxParagraphWords caps paragraph length in words.
func WithMaxParagraphWords(n int) LoaderOption {
	return func(l *Loader) { l.maxWords = n }
}

// WithRecursive controls whether LoadDirectory descends into subdirectories.
func WithRecursive(recursive bool) LoaderOption {
	return func(l *Loader) { l.recursive = recursive }
}

// WithLogger sets a logger for debug output.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader that ingests into ingester.
func NewLoader(ingester Ingester, extractor *extract.Extractor, opts ...LoaderOption) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	l := &Loader{
		ingester:   ingester,
		extractor:  extractor,
		extensions: extract.Extensions,
		maxWords:   DefaultMaxParagraphWords,
		recursive:  true,
		logger:     zap.NewNop(),
		loaded:     make(map[string]fileState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extensions returns the extensions the loader accepts.
func (l *Loader) Extensions() []string {
	return append([]string(nil), l.extensions...)
}

// LoadPath loads a single file or every matching file under a directory.
// It returns the number of paragraphs handed to the ingester.
func (l *Loader) LoadPath(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		_, n, err := l.LoadDirectory(ctx, path)
		return n, err
	}
	return l.LoadFile(ctx, path)
}

// LoadFile extracts, splits, and ingests one file. A file already loaded with the same
// mtime and size is skipped. Returns the number of paragraphs ingested.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !extensionAllowed(ext, l.extensions) {
		return 0, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}

	key := identity.FileKey(absPath)
	state := fileState{mtime: info.ModTime().UnixNano(), size: info.Size()}
	l.mu.Lock()
	prev, seen := l.loaded[key]
	l.mu.Unlock()
	if seen && prev == state {
		l.logger.Debug("skipping unchanged source file", zap.String("path", absPath))
		return 0, nil
	}

	text, err := l.extractor.Extract(absPath)
	if err != nil {
		return 0, fmt.Errorf("extract content: %w", err)
	}
	paragraphs := Split(text, l.maxWords)
	if err := l.ingester.Ingest(ctx, paragraphs); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", filepath.Base(absPath), err)
	}

	l.mu.Lock()
	l.loaded[key] = state
	l.mu.Unlock()
	l.logger.Debug("loaded source file", zap.String("path", absPath), zap.Int("paragraphs", len(paragraphs)))
	return len(paragraphs), nil
}

// LoadDirectory loads every regular file in dir whose extension is allowed.
// Returns the number of files loaded, paragraphs ingested, and the first error encountered.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (files, paragraphs int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !l.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensionAllowed(filepath.Ext(path), l.extensions) {
			return nil
		}
		// resolve symlinks so only regular files are loaded
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		n, loadErr := l.LoadFile(ctx, path)
		if loadErr != nil {
			return loadErr
		}
		files++
		paragraphs += n
		return nil
	})
	return files, paragraphs, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
