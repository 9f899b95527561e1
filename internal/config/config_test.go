package config

import (
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Store.Driver != "qdrant" {
		t.Errorf("default driver = %q, want qdrant", cfg.Store.Driver)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("default dimensions = %d, want 1536", cfg.Embedding.Dimensions)
	}
	if cfg.Query.K != 5 {
		t.Errorf("default k = %d, want 5", cfg.Query.K)
	}
	if cfg.Ingest.ChunkMaxChars != 2000 {
		t.Errorf("default chunk budget = %d, want 2000", cfg.Ingest.ChunkMaxChars)
	}
	if cfg.Ingest.OverlapRecords != 0 {
		t.Errorf("default overlap = %d, want 0", cfg.Ingest.OverlapRecords)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("default max attempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.Store.Driver = "cassandra"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestValidate_RedisRequiresAddrs(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.Store.Driver = "redis"
	cfg.Store.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis driver without addrs")
	}

	cfg.Store.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MinScoreRange(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.Query.MinScore = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min_score > 1")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LOGRAG_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("api_key: ${LOGRAG_TEST_KEY}")))
	if got != "api_key: secret" {
		t.Errorf("expanded = %q", got)
	}

	got = string(expandEnvVars([]byte("url: ${LOGRAG_MISSING:-http://localhost:6333}")))
	if got != "url: http://localhost:6333" {
		t.Errorf("expanded with default = %q", got)
	}
}
