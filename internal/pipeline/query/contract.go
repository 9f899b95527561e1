package query

import (
	"context"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher retrieves the nearest chunks from the vector index.
type Searcher interface {
	Search(ctx context.Context, name string, vector []float32, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredVector, error)
	Count(ctx context.Context, name string) (int, error)
}

// LanguageModel synthesizes the final answer.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
