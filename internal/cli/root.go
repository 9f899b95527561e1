// Package cli wires configuration, logging, and the pipelines into the
// lograg command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsgrep/lograg/internal/chunker"
	"github.com/opsgrep/lograg/internal/config"
	"github.com/opsgrep/lograg/internal/ledger"
	"github.com/opsgrep/lograg/internal/logger"
	"github.com/opsgrep/lograg/internal/metrics"
	"github.com/opsgrep/lograg/internal/pipeline/ingest"
	"github.com/opsgrep/lograg/internal/pipeline/query"
	"github.com/opsgrep/lograg/internal/retry"
	"github.com/opsgrep/lograg/internal/transport/openai"
	"github.com/opsgrep/lograg/internal/vectorstore"
	qdrantstore "github.com/opsgrep/lograg/internal/vectorstore/qdrant"
	redisstore "github.com/opsgrep/lograg/internal/vectorstore/redis"

	memorystore "github.com/opsgrep/lograg/internal/vectorstore/memory"
)

var (
	flagEnv        string
	flagCollection string
)

var rootCmd = &cobra.Command{
	Use:           "lograg",
	Short:         "Index log files into a vector store and ask questions about them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "config environment (default from ENV, falls back to \"local\")")
	rootCmd.PersistentFlags().StringVar(&flagCollection, "collection", "", "vector store collection (default from config)")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// deps holds everything a command needs, plus cleanup.
type deps struct {
	cfg    config.Config
	logger *zap.Logger
	store  vectorstore.Store
	ledger *ledger.Store
}

func (d *deps) close() {
	if d.ledger != nil {
		_ = d.ledger.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	if d.logger != nil {
		_ = d.logger.Sync()
	}
}

// buildDeps loads config and constructs the shared infrastructure.
func buildDeps(needLedger bool) (*deps, error) {
	_ = godotenv.Load()

	env := flagEnv
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return nil, err
	}
	if flagCollection != "" {
		cfg.Collection = flagCollection
	}

	log, err := logger.New(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Register()

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg, logger: log, store: store}
	if needLedger {
		led, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			d.close()
			return nil, err
		}
		d.ledger = led
	}
	return d, nil
}

func newStore(cfg config.Config) (vectorstore.Store, error) {
	switch cfg.Store.Driver {
	case "qdrant":
		return qdrantstore.NewStore(qdrantstore.Config{
			URL:     cfg.Store.URL,
			APIKey:  cfg.Store.APIKey,
			Timeout: time.Duration(cfg.Store.RequestTimeout) * time.Second,
		})
	case "redis":
		store, err := redisstore.NewStore(redisstore.Config{
			Addrs:     cfg.Store.Addrs,
			Password:  cfg.Store.Password,
			KeyPrefix: cfg.Store.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		readiness := time.Duration(cfg.Store.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), readiness); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "memory":
		return memorystore.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func retryPolicy(cfg config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
	}
}

func newIngestService(d *deps) *ingest.Service {
	embedder := openai.NewEmbedder(&openai.Config{
		APIKey:     d.cfg.Provider.APIKey,
		BaseURL:    d.cfg.Provider.BaseURL,
		Model:      d.cfg.Embedding.Model,
		Dimensions: d.cfg.Embedding.Dimensions,
		Logger:     d.logger,
	})
	return ingest.New(d.ledger, embedder, d.store, ingest.Config{
		Collection: d.cfg.Collection,
		Dimension:  d.cfg.Embedding.Dimensions,
		Globs:      d.cfg.Ingest.Globs,
		BatchSize:  d.cfg.Ingest.BatchSize,
		Workers:    d.cfg.Ingest.Workers,
		Chunking: chunker.Config{
			MaxChars:       d.cfg.Ingest.ChunkMaxChars,
			OverlapRecords: d.cfg.Ingest.OverlapRecords,
		},
		Retry: retryPolicy(d.cfg),
	}, d.logger)
}

func newQueryService(d *deps) *query.Service {
	embedder := openai.NewEmbedder(&openai.Config{
		APIKey:     d.cfg.Provider.APIKey,
		BaseURL:    d.cfg.Provider.BaseURL,
		Model:      d.cfg.Embedding.Model,
		Dimensions: d.cfg.Embedding.Dimensions,
		Logger:     d.logger,
	})
	llm := openai.NewLLM(&openai.Config{
		APIKey:  d.cfg.Provider.APIKey,
		BaseURL: d.cfg.Provider.BaseURL,
		Model:   d.cfg.LLM.Model,
		Logger:  d.logger,
	})
	return query.New(embedder, d.store, llm, query.Config{
		Collection:    d.cfg.Collection,
		K:             d.cfg.Query.K,
		MinScore:      d.cfg.Query.MinScore,
		ContextBudget: d.cfg.Query.ContextBudget,
		Retry:         retryPolicy(d.cfg),
	}, d.logger)
}
