// Package integration provides end-to-end tests (requires real storage and indices).
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/pmagent/internal/agent"
	"github.com/hyperjump/pmagent/internal/config"
	"github.com/hyperjump/pmagent/internal/contextstore"
	"github.com/hyperjump/pmagent/internal/embedding"
	"github.com/hyperjump/pmagent/internal/feedback"
	"github.com/hyperjump/pmagent/internal/models"
	"github.com/hyperjump/pmagent/internal/retrieval"
	"github.com/hyperjump/pmagent/internal/server"
	"github.com/hyperjump/pmagent/internal/sources"
	"github.com/hyperjump/pmagent/internal/storage"
	"github.com/hyperjump/pmagent/internal/vector"
	"go.uber.org/zap"
)

const dims = 384

// recordingCompleter answers every prompt with a fixed reply and keeps the prompts.
type recordingCompleter struct {
	mu      sync.Mutex
	prompts []string
}

func (c *recordingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return `Reasoning first. {"prioritized_features": [{"feature": "single sign-on", "reason": "blocks deals"}]}`, nil
}

func (c *recordingCompleter) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

type flow struct {
	dir       string
	store     *contextstore.Store
	loader    *sources.Loader
	completer *recordingCompleter
	http      *httptest.Server
}

func newFlow(t *testing.T) *flow {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewSQLiteStorage(filepath.Join(dir, "pmagent.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	idx, err := vector.NewMemoryIndex(dims)
	if err != nil {
		t.Fatal(err)
	}
	store, err := contextstore.New("pm_context", embedding.NewHashingEmbedder(dims), idx,
		contextstore.WithPersistence(db))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	fbIndex, err := feedback.NewIndex(filepath.Join(dir, "feedback.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fbIndex.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "pmagent.db")

	retriever := retrieval.NewFromStore(store, retrieval.WithTopK(1))
	completer := &recordingCompleter{}
	agents := agent.New(completer, retriever, agent.WithMemory(agent.NewMemory(5)))
	srv := server.NewServer(store, retriever, agents, cfg, zap.NewNop(),
		server.WithFeedback(feedback.NewService(db, fbIndex, zap.NewNop())))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &flow{
		dir:       dir,
		store:     store,
		loader:    sources.NewLoader(store, nil),
		completer: completer,
		http:      ts,
	}
}

func (f *flow) post(t *testing.T, path string, body interface{}, out interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(f.http.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *flow) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

const notes = `Enterprise customers keep asking for single sign-on. Single sign-on through Okta blocks three deals.

Designers proposed a dark theme for the dashboard.

The reports page takes twelve seconds to load. Slow reports drive churn.
`

func TestIntegration_SourcesToAgent(t *testing.T) {
	f := newFlow(t)
	docs := filepath.Join(f.dir, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "notes.md"), []byte(notes), 0644); err != nil {
		t.Fatal(err)
	}
	n, err := f.loader.LoadPath(context.Background(), docs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 3 || f.store.Len() != 3 {
		t.Fatalf("expected 3 paragraphs loaded, got %d (stored %d)", n, f.store.Len())
	}

	var result models.AgentResult
	code := f.post(t, "/api/v1/prioritize-features", models.FeatureList{Features: []string{"single sign-on"}}, &result)
	if code != http.StatusOK {
		t.Fatalf("prioritize: status %d", code)
	}
	if result.Agent != agent.Prioritization || result.RunID == "" {
		t.Errorf("unexpected result %+v", result)
	}
	if !strings.Contains(string(result.JSON), "prioritized_features") {
		t.Errorf("expected JSON payload, got %s", result.JSON)
	}
	prompt := f.completer.last()
	if !strings.Contains(prompt, "Single sign-on through Okta blocks three deals.") {
		t.Errorf("prompt lacks retrieved context:\n%s", prompt)
	}
	if strings.Contains(prompt, "dark theme") {
		t.Errorf("prompt should carry only the top match:\n%s", prompt)
	}

	var created map[string]string
	code = f.post(t, "/api/v1/feedback", models.Feedback{
		RunID:    result.RunID,
		Agent:    result.Agent,
		Prompt:   "single sign-on",
		Response: result.Output,
		Rating:   5,
	}, &created)
	if code != http.StatusCreated || created["id"] == "" {
		t.Fatalf("feedback: status %d body %v", code, created)
	}

	var listed struct {
		Feedback []models.Feedback `json:"feedback"`
	}
	if code := f.get(t, "/api/v1/feedback?q=deals", &listed); code != http.StatusOK {
		t.Fatalf("search feedback: status %d", code)
	}
	if len(listed.Feedback) != 1 || listed.Feedback[0].RunID != result.RunID {
		t.Errorf("expected feedback for run %s, got %+v", result.RunID, listed.Feedback)
	}

	var status map[string]interface{}
	if code := f.get(t, "/api/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if status["documents"] != float64(3) {
		t.Errorf("expected 3 documents in status, got %v", status["documents"])
	}
	if status["feedback"] != float64(1) {
		t.Errorf("expected 1 feedback in status, got %v", status["feedback"])
	}
}

func TestIntegration_WatcherFeedsRetrieval(t *testing.T) {
	f := newFlow(t)
	docs := filepath.Join(f.dir, "watched")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := sources.WatchLoader(ctx, f.loader, []string{docs}, sources.WithDebounce(20*time.Millisecond))
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(docs, "feedback.txt"), []byte(notes), 0644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for f.store.Len() < 3 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if f.store.Len() != 3 {
		t.Fatalf("expected watcher to load 3 paragraphs, store has %d", f.store.Len())
	}

	var resp models.RetrieveResponse
	code := f.post(t, "/api/v1/context/retrieve", models.NewRetrieveRequest([]string{"slow reports"}, 0), &resp)
	if code != http.StatusOK {
		t.Fatalf("retrieve: status %d", code)
	}
	if resp.Context != "The reports page takes twelve seconds to load. Slow reports drive churn." {
		t.Errorf("unexpected context %q", resp.Context)
	}
}
