// Package query answers questions about ingested logs: embed the question,
// retrieve the nearest chunks, and synthesize an answer over them.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsgrep/lograg/internal/metrics"
	"github.com/opsgrep/lograg/internal/retry"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

// NoResultsAnswer is returned when retrieval finds nothing above the score
// cutoff. No LLM call is made in that case.
const NoResultsAnswer = "No relevant logs found for this question."

const systemPrompt = `You are a log analysis assistant. Answer the user's question using only the log excerpts provided in the context. Cite concrete timestamps, severities, and messages from the logs. If the context does not contain enough information to answer, say so plainly instead of guessing.`

// Config holds the retrieval settings.
type Config struct {
	Collection    string
	K             int
	MinScore      float64
	ContextBudget int
	Retry         retry.Policy
}

// Source identifies one chunk that contributed to an answer.
type Source struct {
	Path     string
	Seq      int
	Score    float64
	TimeFrom time.Time
	TimeTo   time.Time
}

// Answer is the result of one question.
type Answer struct {
	Text      string
	Sources   []Source
	NoResults bool
}

// Service runs retrieval-augmented queries.
type Service struct {
	embed  Embedder
	store  Searcher
	llm    LanguageModel
	cfg    Config
	logger *zap.Logger
}

// New creates a query service.
func New(embed Embedder, store Searcher, llm LanguageModel, cfg Config, logger *zap.Logger) *Service {
	if cfg.K <= 0 {
		cfg.K = 5
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 8000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, store: store, llm: llm, cfg: cfg, logger: logger}
}

// Ask answers a question over the indexed logs. An empty index or a
// retrieval round with no hit above the cutoff short-circuits with
// NoResultsAnswer before any LLM spend.
func (s *Service) Ask(ctx context.Context, question string, filter *vectorstore.Filter) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is empty")
	}

	count, err := s.store.Count(ctx, s.cfg.Collection)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return Answer{}, fmt.Errorf("count collection %s: %w", s.cfg.Collection, err)
	}
	if count == 0 {
		metrics.QueriesTotal.WithLabelValues("no_results").Inc()
		s.logger.Info("query against empty collection", zap.String("collection", s.cfg.Collection))
		return Answer{Text: NoResultsAnswer, NoResults: true}, nil
	}

	var vector []float32
	err = retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		res, embErr := s.embed.Embed(ctx, question)
		if embErr != nil {
			return embErr
		}
		vector = res.Embedding
		return nil
	})
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}

	var hits []vectorstore.ScoredVector
	err = retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var searchErr error
		hits, searchErr = s.store.Search(ctx, s.cfg.Collection, vector, s.cfg.K, filter)
		return searchErr
	})
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return Answer{}, fmt.Errorf("search: %w", err)
	}

	hits = s.aboveCutoff(hits)
	if len(hits) == 0 {
		metrics.QueriesTotal.WithLabelValues("no_results").Inc()
		return Answer{Text: NoResultsAnswer, NoResults: true}, nil
	}

	contextText, sources := s.assembleContext(hits)

	var text string
	err = retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var llmErr error
		text, llmErr = s.llm.Complete(ctx, systemPrompt, buildUserPrompt(contextText, question))
		return llmErr
	})
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return Answer{}, fmt.Errorf("complete: %w", err)
	}

	metrics.QueriesTotal.WithLabelValues("answered").Inc()
	s.logger.Info("query answered",
		zap.Int("hits", len(hits)),
		zap.Int("sources", len(sources)),
		zap.Float64("top_score", hits[0].Score))

	return Answer{Text: text, Sources: sources}, nil
}

func (s *Service) aboveCutoff(hits []vectorstore.ScoredVector) []vectorstore.ScoredVector {
	if s.cfg.MinScore <= 0 {
		return hits
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= s.cfg.MinScore {
			kept = append(kept, h)
		}
	}
	return kept
}

// assembleContext concatenates hits best-first until the character budget is
// reached. The first chunk is always included even if it alone exceeds the
// budget, so retrieval never silently produces an empty context.
func (s *Service) assembleContext(hits []vectorstore.ScoredVector) (string, []Source) {
	var sb strings.Builder
	var sources []Source

	for i, h := range hits {
		block := formatBlock(h)
		if i > 0 && sb.Len()+len(block) > s.cfg.ContextBudget {
			break
		}
		sb.WriteString(block)
		sources = append(sources, Source{
			Path:     h.Payload.Path,
			Seq:      h.Payload.Seq,
			Score:    h.Score,
			TimeFrom: unixOrZero(h.Payload.TimeFrom),
			TimeTo:   unixOrZero(h.Payload.TimeTo),
		})
	}

	return sb.String(), sources
}

func formatBlock(h vectorstore.ScoredVector) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s (chunk %d", h.Payload.Path, h.Payload.Seq)
	if h.Payload.TimeFrom != 0 {
		from := time.Unix(h.Payload.TimeFrom, 0).UTC().Format(time.RFC3339)
		to := time.Unix(h.Payload.TimeTo, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(&sb, ", %s to %s", from, to)
	}
	sb.WriteString(") ---\n")
	sb.WriteString(h.Payload.Text)
	sb.WriteString("\n\n")
	return sb.String()
}

func buildUserPrompt(contextText, question string) string {
	return fmt.Sprintf("Log excerpts:\n\n%s\nQuestion: %s", contextText, question)
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
