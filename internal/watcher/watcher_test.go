package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opsgrep/lograg/internal/chunker"
	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/pipeline/ingest"
	"github.com/opsgrep/lograg/internal/retry"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

type memLedger struct {
	mu   sync.Mutex
	done map[string]bool
}

func (l *memLedger) IsIngested(_ context.Context, path, fp string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done[path+"|"+fp], nil
}

func (l *memLedger) MarkIngested(_ context.Context, f domain.FileRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done[f.Path+"|"+f.Fingerprint] = true
	return nil
}

func (l *memLedger) MarkFailed(_ context.Context, _ domain.FileRecord, _ string) error {
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type stubStore struct{}

func (stubStore) EnsureCollection(_ context.Context, _ string, _ int, _ string) error { return nil }
func (stubStore) Upsert(_ context.Context, _ string, _ []vectorstore.IndexedVector) error {
	return nil
}

func newTestService(dir string) *ingest.Service {
	return ingest.New(
		&memLedger{done: make(map[string]bool)},
		stubEmbedder{},
		stubStore{},
		ingest.Config{
			Collection: "aks_logs",
			Dimension:  2,
			Globs:      []string{filepath.Join(dir, "*.json")},
			BatchSize:  10,
			Workers:    1,
			Chunking:   chunker.Config{MaxChars: 2000},
			Retry:      retry.Policy{MaxAttempts: 1},
		},
		nil,
	)
}

func TestWatchDirs(t *testing.T) {
	dirs := watchDirs([]string{
		"input-logs/*.json",
		"input-logs/**/*.json",
		"other/logs.json",
	})
	if len(dirs) != 2 {
		t.Fatalf("dirs = %v, want 2 entries", dirs)
	}
	if dirs[0] != "input-logs" || dirs[1] != "other" {
		t.Errorf("unexpected dirs: %v", dirs)
	}
}

func TestWatcher_ReingestsOnNewFile(t *testing.T) {
	dir := t.TempDir()

	runs := make(chan ingest.Summary, 10)
	w := New(newTestService(dir), []string{filepath.Join(dir, "*.json")}, nil).
		WithDebounce(50 * time.Millisecond)
	w.OnRun = func(s ingest.Summary, err error) {
		if err != nil {
			t.Errorf("run failed: %v", err)
		}
		runs <- s
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Initial pass over an empty directory.
	select {
	case s := <-runs:
		if s.Discovered != 0 {
			t.Errorf("initial run discovered %d files", s.Discovered)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial run never happened")
	}

	content := `{"timestamp":"2024-05-01T10:00:00Z","level":"ERROR","message":"pod crashed"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "new.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case s := <-runs:
		if s.Ingested != 1 {
			t.Errorf("triggered run ingested %d files, want 1", s.Ingested)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no run triggered by file creation")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
