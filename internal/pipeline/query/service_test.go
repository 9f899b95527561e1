package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/retry"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

// --- fakes ---

type fakeEmbedder struct {
	calls int
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type fakeSearcher struct {
	hits       []vectorstore.ScoredVector
	total      int
	searchErr  error
	lastK      int
	lastFilter *vectorstore.Filter
}

func (s *fakeSearcher) Search(_ context.Context, _ string, _ []float32, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredVector, error) {
	s.lastK = k
	s.lastFilter = filter
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func (s *fakeSearcher) Count(_ context.Context, _ string) (int, error) {
	return s.total, nil
}

type fakeLLM struct {
	calls      int
	lastSystem string
	lastUser   string
	answer     string
	err        error
}

func (l *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	l.calls++
	l.lastSystem = system
	l.lastUser = user
	if l.err != nil {
		return "", l.err
	}
	return l.answer, nil
}

// --- helpers ---

func hit(id, path string, seq int, score float64, text string) vectorstore.ScoredVector {
	return vectorstore.ScoredVector{
		IndexedVector: vectorstore.IndexedVector{
			ID:      id,
			Payload: vectorstore.Payload{Text: text, Path: path, Seq: seq},
		},
		Score: score,
	}
}

func testConfig() Config {
	return Config{
		Collection:    "aks_logs",
		K:             5,
		MinScore:      0.25,
		ContextBudget: 8000,
		Retry:         retry.Policy{MaxAttempts: 1},
	}
}

func TestAsk_AnswersWithSources(t *testing.T) {
	embed := &fakeEmbedder{}
	store := &fakeSearcher{
		total: 10,
		hits: []vectorstore.ScoredVector{
			hit("aaa", "logs/a.json", 0, 0.9, "ERROR pod crashed"),
			hit("bbb", "logs/b.json", 2, 0.7, "WARN memory pressure"),
		},
	}
	llm := &fakeLLM{answer: "The pod crashed after memory pressure."}
	svc := New(embed, store, llm, testConfig(), nil)

	answer, err := svc.Ask(context.Background(), "why did the pod crash?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.NoResults {
		t.Fatal("unexpected NoResults")
	}
	if answer.Text != "The pod crashed after memory pressure." {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(answer.Sources))
	}
	if answer.Sources[0].Path != "logs/a.json" || answer.Sources[0].Score != 0.9 {
		t.Errorf("unexpected first source: %+v", answer.Sources[0])
	}
	if store.lastK != 5 {
		t.Errorf("search k = %d, want 5", store.lastK)
	}
	if !strings.Contains(llm.lastUser, "ERROR pod crashed") ||
		!strings.Contains(llm.lastUser, "why did the pod crash?") {
		t.Errorf("user prompt missing context or question:\n%s", llm.lastUser)
	}
	if !strings.Contains(llm.lastSystem, "log analysis") {
		t.Errorf("unexpected system prompt: %q", llm.lastSystem)
	}
}

func TestAsk_EmptyCollectionShortCircuits(t *testing.T) {
	embed := &fakeEmbedder{}
	store := &fakeSearcher{total: 0}
	llm := &fakeLLM{}
	svc := New(embed, store, llm, testConfig(), nil)

	answer, err := svc.Ask(context.Background(), "anything?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.NoResults || answer.Text != NoResultsAnswer {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if embed.calls != 0 {
		t.Errorf("embedder called %d times for empty collection", embed.calls)
	}
	if llm.calls != 0 {
		t.Errorf("LLM called %d times for empty collection", llm.calls)
	}
}

func TestAsk_BelowCutoffMeansNoResults(t *testing.T) {
	embed := &fakeEmbedder{}
	store := &fakeSearcher{
		total: 10,
		hits: []vectorstore.ScoredVector{
			hit("aaa", "logs/a.json", 0, 0.1, "barely related"),
			hit("bbb", "logs/b.json", 1, 0.05, "unrelated"),
		},
	}
	llm := &fakeLLM{}
	svc := New(embed, store, llm, testConfig(), nil)

	answer, err := svc.Ask(context.Background(), "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.NoResults || answer.Text != NoResultsAnswer {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if llm.calls != 0 {
		t.Errorf("LLM called %d times despite cutoff", llm.calls)
	}
}

func TestAsk_ContextBudgetTrimsSources(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 300

	embed := &fakeEmbedder{}
	store := &fakeSearcher{
		total: 10,
		hits: []vectorstore.ScoredVector{
			hit("aaa", "logs/a.json", 0, 0.9, strings.Repeat("x", 200)),
			hit("bbb", "logs/b.json", 1, 0.8, strings.Repeat("y", 200)),
			hit("ccc", "logs/c.json", 2, 0.7, strings.Repeat("z", 200)),
		},
	}
	llm := &fakeLLM{answer: "ok"}
	svc := New(embed, store, llm, cfg, nil)

	answer, err := svc.Ask(context.Background(), "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("sources = %d, want 1 under budget", len(answer.Sources))
	}
	if answer.Sources[0].Path != "logs/a.json" {
		t.Errorf("best hit not kept: %+v", answer.Sources[0])
	}
	if strings.Contains(llm.lastUser, "yyy") {
		t.Error("trimmed chunk leaked into the prompt")
	}
}

func TestAsk_OversizedFirstChunkStillIncluded(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 50

	embed := &fakeEmbedder{}
	store := &fakeSearcher{
		total: 10,
		hits:  []vectorstore.ScoredVector{hit("aaa", "logs/a.json", 0, 0.9, strings.Repeat("x", 500))},
	}
	llm := &fakeLLM{answer: "ok"}
	svc := New(embed, store, llm, cfg, nil)

	answer, err := svc.Ask(context.Background(), "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(answer.Sources))
	}
}

func TestAsk_FilterPassedThrough(t *testing.T) {
	embed := &fakeEmbedder{}
	store := &fakeSearcher{total: 10, hits: []vectorstore.ScoredVector{hit("aaa", "a", 0, 0.9, "t")}}
	llm := &fakeLLM{answer: "ok"}
	svc := New(embed, store, llm, testConfig(), nil)

	filter := &vectorstore.Filter{Severity: "ERROR"}
	if _, err := svc.Ask(context.Background(), "errors?", filter); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if store.lastFilter == nil || store.lastFilter.Severity != "ERROR" {
		t.Errorf("filter not passed through: %+v", store.lastFilter)
	}
}

func TestAsk_EmptyQuestionRejected(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{total: 1}, &fakeLLM{}, testConfig(), nil)
	if _, err := svc.Ask(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestAsk_ProviderErrorPropagates(t *testing.T) {
	embed := &fakeEmbedder{err: fmt.Errorf("rate limited: %w", domain.ErrProvider)}
	store := &fakeSearcher{total: 10}
	llm := &fakeLLM{}
	svc := New(embed, store, llm, testConfig(), nil)

	_, err := svc.Ask(context.Background(), "what happened?", nil)
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if llm.calls != 0 {
		t.Error("LLM called after embed failure")
	}
}

func TestAsk_RetriesRetryableSearchError(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = retry.Policy{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 1}

	embed := &fakeEmbedder{}
	store := &flakySearcher{failures: 2, hits: []vectorstore.ScoredVector{hit("aaa", "a", 0, 0.9, "t")}}
	llm := &fakeLLM{answer: "ok"}
	svc := New(embed, store, llm, cfg, nil)

	answer, err := svc.Ask(context.Background(), "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "ok" {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if store.searches != 3 {
		t.Errorf("search attempts = %d, want 3", store.searches)
	}
}

type flakySearcher struct {
	failures int
	searches int
	hits     []vectorstore.ScoredVector
}

func (s *flakySearcher) Search(_ context.Context, _ string, _ []float32, _ int, _ *vectorstore.Filter) ([]vectorstore.ScoredVector, error) {
	s.searches++
	if s.searches <= s.failures {
		return nil, fmt.Errorf("transient: %w", domain.ErrIndex)
	}
	return s.hits, nil
}

func (s *flakySearcher) Count(_ context.Context, _ string) (int, error) { return 1, nil }
