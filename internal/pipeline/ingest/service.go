// Package ingest drives the idempotent file-to-index pipeline:
// discover → fingerprint → load → chunk → embed → upsert → mark.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/opsgrep/lograg/internal/chunker"
	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/loader"
	"github.com/opsgrep/lograg/internal/metrics"
	"github.com/opsgrep/lograg/internal/retry"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

// Config holds the pipeline settings.
type Config struct {
	Collection string
	Dimension  int
	Globs      []string
	BatchSize  int
	Workers    int
	Chunking   chunker.Config
	Retry      retry.Policy
}

// FileResult is the outcome of one file.
type FileResult struct {
	File      domain.FileRecord
	Status    domain.IngestStatus
	Chunks    int
	Records   int
	Malformed int
	Err       error
	Duration  time.Duration
}

// Summary aggregates a pipeline run.
type Summary struct {
	Discovered int
	Ingested   int
	Skipped    int
	Failed     int
	Chunks     int
	Records    int
	Malformed  int
	Duration   time.Duration
}

// Service runs the ingestion pipeline.
type Service struct {
	ledger Ledger
	embed  Embedder
	store  VectorStore
	cfg    Config
	logger *zap.Logger

	// OnFileDone, when set, is called after each processed file. Used by
	// the CLI for progress reporting; called from worker goroutines.
	OnFileDone func(FileResult)
}

// New creates an ingestion service.
func New(ledger Ledger, embed Embedder, store VectorStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ledger: ledger, embed: embed, store: store, cfg: cfg, logger: logger}
}

// Discover expands the configured globs and fingerprints every match.
// Paths are returned sorted so runs are reproducible.
func (s *Service) Discover(ctx context.Context) ([]domain.FileRecord, error) {
	seen := make(map[string]struct{})
	var paths []string

	for _, glob := range s.cfg.Globs {
		matches, err := doublestar.FilepathGlob(glob)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", glob, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	files := make([]domain.FileRecord, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := domain.NewFileRecord(p)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", p, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// Run discovers files and indexes every version not yet in the ledger.
// One file's failure never blocks the others; the failed version is
// recorded so the next run retries it.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	files, err := s.Discover(ctx)
	if err != nil {
		return Summary{}, err
	}

	// Fail fast before any provider spend when the index is unusable.
	err = retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.store.EnsureCollection(ctx, s.cfg.Collection, s.cfg.Dimension, vectorstore.DistanceCosine)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("ensure collection %s: %w", s.cfg.Collection, err)
	}

	summary := Summary{Discovered: len(files)}

	pending := make([]domain.FileRecord, 0, len(files))
	for _, file := range files {
		done, err := s.ledger.IsIngested(ctx, file.Path, file.Fingerprint)
		if err != nil {
			return summary, fmt.Errorf("ledger check %s: %w", file.Path, err)
		}
		if done {
			summary.Skipped++
			metrics.FilesTotal.WithLabelValues("skipped").Inc()
			s.logger.Debug("file already ingested",
				zap.String("path", file.Path),
				zap.String("fingerprint", file.Fingerprint))
			continue
		}
		pending = append(pending, file)
	}

	var ingested, failed, chunks, records, malformed atomic.Int64

	jobs := make(chan domain.FileRecord)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				res := s.processFile(ctx, file)
				switch res.Status {
				case domain.StatusIngested:
					ingested.Add(1)
					chunks.Add(int64(res.Chunks))
					records.Add(int64(res.Records))
					malformed.Add(int64(res.Malformed))
				default:
					failed.Add(1)
				}
				if s.OnFileDone != nil {
					s.OnFileDone(res)
				}
			}
		}()
	}

feed:
	for _, file := range pending {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- file:
		}
	}
	close(jobs)
	wg.Wait()

	summary.Ingested = int(ingested.Load())
	summary.Failed = int(failed.Load())
	summary.Chunks = int(chunks.Load())
	summary.Records = int(records.Load())
	summary.Malformed = int(malformed.Load())
	summary.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// processFile indexes one file version. The ledger mark is written only
// after every chunk is durably upserted, so a crash mid-file leaves the
// version pending and the next run redoes it with identical chunk ids.
func (s *Service) processFile(ctx context.Context, file domain.FileRecord) FileResult {
	start := time.Now()
	res := FileResult{File: file}

	fail := func(err error) FileResult {
		res.Status = domain.StatusFailed
		res.Err = err
		res.Duration = time.Since(start)
		metrics.FilesTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("file ingestion failed",
			zap.String("path", file.Path), zap.Error(err))
		if markErr := s.ledger.MarkFailed(ctx, file, err.Error()); markErr != nil {
			s.logger.Error("ledger mark failed", zap.String("path", file.Path), zap.Error(markErr))
		}
		return res
	}

	loaded, err := loader.Load(file.Path)
	if err != nil {
		return fail(fmt.Errorf("load: %w", err))
	}
	metrics.RecordsParsedTotal.Add(float64(len(loaded.Records)))
	metrics.RecordsMalformedTotal.Add(float64(loaded.Malformed))

	chunks := chunker.Split(file, loaded.Records, s.cfg.Chunking)
	metrics.ChunksBuiltTotal.Add(float64(len(chunks)))

	for batchStart := 0; batchStart < len(chunks); batchStart += s.cfg.BatchSize {
		end := min(batchStart+s.cfg.BatchSize, len(chunks))
		if err := s.indexBatch(ctx, chunks[batchStart:end]); err != nil {
			return fail(err)
		}
	}

	if err := s.ledger.MarkIngested(ctx, file); err != nil {
		return fail(fmt.Errorf("ledger mark: %w", err))
	}

	res.Status = domain.StatusIngested
	res.Chunks = len(chunks)
	res.Records = len(loaded.Records)
	res.Malformed = loaded.Malformed
	res.Duration = time.Since(start)
	metrics.FilesTotal.WithLabelValues("ingested").Inc()
	s.logger.Info("file ingested",
		zap.String("path", file.Path),
		zap.Int("records", res.Records),
		zap.Int("chunks", res.Chunks),
		zap.Duration("took", res.Duration))
	return res
}

func (s *Service) indexBatch(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var batch domain.BatchEmbeddingResult
	err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var embErr error
		batch, embErr = s.embed.EmbedBatch(ctx, texts)
		return embErr
	})
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}

	vectors := make([]vectorstore.IndexedVector, len(chunks))
	for i, c := range chunks {
		vectors[i] = vectorstore.IndexedVector{
			ID:      c.ID,
			Vector:  batch.Embeddings[i],
			Payload: chunkPayload(c),
		}
	}

	upsertStart := time.Now()
	err = retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.store.Upsert(ctx, s.cfg.Collection, vectors)
	})
	if err != nil {
		metrics.UpsertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("upsert batch: %w", err)
	}
	metrics.UpsertsTotal.WithLabelValues("success").Inc()
	metrics.UpsertDuration.Observe(time.Since(upsertStart).Seconds())
	return nil
}

func chunkPayload(c domain.Chunk) vectorstore.Payload {
	p := vectorstore.Payload{
		Text:        c.Text,
		Path:        c.Path,
		Fingerprint: c.Fingerprint,
		Seq:         c.Seq,
		Severities:  c.Severities,
	}
	if !c.TimeFrom.IsZero() {
		p.TimeFrom = c.TimeFrom.Unix()
	}
	if !c.TimeTo.IsZero() {
		p.TimeTo = c.TimeTo.Unix()
	}
	return p
}
