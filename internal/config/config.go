package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the lograg configuration.
type Config struct {
	Collection string          `yaml:"collection"`
	Store      StoreConfig     `yaml:"store"`
	Provider   ProviderConfig  `yaml:"provider"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	LLM        LLMConfig       `yaml:"llm"`
	Ledger     LedgerConfig    `yaml:"ledger"`
	Ingest     IngestConfig    `yaml:"ingest"`
	Query      QueryConfig     `yaml:"query"`
	Retry      RetryConfig     `yaml:"retry"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// StoreConfig holds vector store connection settings.
type StoreConfig struct {
	Driver           string   `yaml:"driver"`  // qdrant, redis, memory (default: qdrant)
	URL              string   `yaml:"url"`     // qdrant endpoint
	APIKey           string   `yaml:"api_key"` // qdrant api key, optional
	Addrs            []string `yaml:"addrs"`   // redis addresses
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	RequestTimeout   int      `yaml:"request_timeout_sec"`
}

// ProviderConfig holds the OpenAI-compatible API endpoint shared by the
// embedding gateway and the language model.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds answer-synthesis model settings.
type LLMConfig struct {
	Model string `yaml:"model"`
}

// LedgerConfig holds ingestion ledger settings.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Globs          []string `yaml:"globs"`
	BatchSize      int      `yaml:"batch_size"`
	Workers        int      `yaml:"workers"`
	ChunkMaxChars  int      `yaml:"chunk_max_chars"`
	OverlapRecords int      `yaml:"chunk_overlap_records"`
}

// QueryConfig holds query pipeline settings.
type QueryConfig struct {
	K             int     `yaml:"k"`
	MinScore      float64 `yaml:"min_score"`
	ContextBudget int     `yaml:"context_budget_chars"`
}

// RetryConfig holds the bounded-backoff policy for provider and index calls.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	InitialDelayMs int `yaml:"initial_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
}

// MetricsConfig holds the optional debug listener settings (watch mode).
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "aks_logs"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "qdrant"
	}
	if c.Store.URL == "" {
		c.Store.URL = "http://localhost:6333"
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "lograg:"
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}
	if c.Store.RequestTimeout <= 0 {
		c.Store.RequestTimeout = 30
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4.1-nano"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "ingestracker"
	}
	if len(c.Ingest.Globs) == 0 {
		c.Ingest.Globs = []string{"input-logs/*.json"}
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 10
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.ChunkMaxChars <= 0 {
		c.Ingest.ChunkMaxChars = 2000
	}
	if c.Ingest.OverlapRecords < 0 {
		c.Ingest.OverlapRecords = 0
	}
	if c.Query.K <= 0 {
		c.Query.K = 5
	}
	if c.Query.MinScore <= 0 {
		c.Query.MinScore = 0.25
	}
	if c.Query.ContextBudget <= 0 {
		c.Query.ContextBudget = 8000
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 4
	}
	if c.Retry.InitialDelayMs <= 0 {
		c.Retry.InitialDelayMs = 250
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 5000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "qdrant":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the qdrant driver")
		}
	case "redis":
		if len(c.Store.Addrs) == 0 {
			return fmt.Errorf("store.addrs is required for the redis driver")
		}
	case "memory":
		// nothing to validate
	default:
		return fmt.Errorf("store.driver must be \"qdrant\", \"redis\" or \"memory\", got %q", c.Store.Driver)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Ingest.OverlapRecords < 0 {
		return fmt.Errorf("ingest.chunk_overlap_records must not be negative, got %d", c.Ingest.OverlapRecords)
	}
	if c.Query.MinScore < 0 || c.Query.MinScore > 1 {
		return fmt.Errorf("query.min_score must be in [0,1], got %g", c.Query.MinScore)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
