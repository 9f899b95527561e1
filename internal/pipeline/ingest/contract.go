package ingest

import (
	"context"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

// Ledger records which file versions have been fully indexed.
type Ledger interface {
	IsIngested(ctx context.Context, path, fingerprint string) (bool, error)
	MarkIngested(ctx context.Context, file domain.FileRecord) error
	MarkFailed(ctx context.Context, file domain.FileRecord, reason string) error
}

// Embedder vectorizes chunk texts in batches.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// VectorStore persists chunk vectors.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dimension int, metric string) error
	Upsert(ctx context.Context, name string, vectors []vectorstore.IndexedVector) error
}
