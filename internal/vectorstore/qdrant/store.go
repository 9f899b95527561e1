// Package qdrant is a minimal REST client for the Qdrant vector database.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

// Config holds connection parameters for a Qdrant store.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Store implements vectorstore.Store over the Qdrant HTTP API.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore creates a Qdrant store client.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var out json.RawMessage
	if err := s.doJSON(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close is a no-op for the HTTP client.
func (s *Store) Close() {}

// EnsureCollection creates the collection if absent. An existing collection
// with a different vector size fails fast instead of corrupting the index.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int, metric string) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	err := s.doJSON(ctx, http.MethodGet, "/collections/"+name, nil, &info)
	if err == nil {
		if got := info.Result.Config.Params.Vectors.Size; got != dimension {
			return domain.NewDimensionMismatch(got, dimension)
		}
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("describe collection %s: %w", name, err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distanceName(metric),
		},
	}
	if err := s.doJSON(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes points with wait=true so a successful call means the vectors
// are durable before the ledger mark. Empty batches are a no-op.
func (s *Store) Upsert(ctx context.Context, name string, vectors []vectorstore.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	points := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		payload := map[string]any{
			"chunk_id":    v.ID,
			"text":        v.Payload.Text,
			"path":        v.Payload.Path,
			"fingerprint": v.Payload.Fingerprint,
			"seq":         v.Payload.Seq,
			"time_from":   v.Payload.TimeFrom,
			"time_to":     v.Payload.TimeTo,
			"severities":  v.Payload.Severities,
		}
		points[i] = map[string]any{
			"id":      pointID(v.ID),
			"vector":  v.Vector,
			"payload": payload,
		}
	}

	body := map[string]any{"points": points}
	if err := s.doJSON(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search runs a top-K similarity query with an optional payload filter.
func (s *Store) Search(
	ctx context.Context, name string, vector []float32, k int, filter *vectorstore.Filter,
) ([]vectorstore.ScoredVector, error) {
	if k <= 0 {
		k = 5
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if cond := buildFilter(filter); cond != nil {
		body["filter"] = cond
	}

	var resp struct {
		Result []struct {
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/collections/"+name+"/points/search", body, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]vectorstore.ScoredVector, 0, len(resp.Result))
	for _, hit := range resp.Result {
		var payload struct {
			ChunkID string `json:"chunk_id"`
			vectorstore.Payload
		}
		if err := json.Unmarshal(hit.Payload, &payload); err != nil {
			continue
		}
		results = append(results, vectorstore.ScoredVector{
			IndexedVector: vectorstore.IndexedVector{
				ID:      payload.ChunkID,
				Payload: payload.Payload,
			},
			Score: hit.Score,
		})
	}

	// Qdrant already ranks by score; re-sort for the deterministic
	// ascending-id tie break.
	vectorstore.SortResults(results)
	return results, nil
}

// Count returns the exact number of stored points.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := s.doJSON(ctx, http.MethodPost, "/collections/"+name+"/points/count", body, &resp); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return resp.Result.Count, nil
}

// buildFilter translates the metadata filter into Qdrant filter conditions.
// The time window matches chunks whose record range overlaps it.
func buildFilter(f *vectorstore.Filter) map[string]any {
	if f.IsEmpty() {
		return nil
	}
	var must []map[string]any
	if f.Severity != "" {
		must = append(must, map[string]any{
			"key":   "severities",
			"match": map[string]any{"value": f.Severity},
		})
	}
	if !f.Since.IsZero() {
		must = append(must, map[string]any{
			"key":   "time_to",
			"range": map[string]any{"gte": f.Since.Unix()},
		})
	}
	if !f.Until.IsZero() {
		must = append(must, map[string]any{
			"key":   "time_from",
			"range": map[string]any{"lte": f.Until.Unix()},
		})
	}
	return map[string]any{"must": must}
}

// pointID maps a chunk id onto a Qdrant point id. Qdrant only accepts UUIDs
// or unsigned integers, so the leading 16 bytes of the sha256 chunk id are
// formatted as a UUID. The mapping is deterministic, keeping upserts
// idempotent; the full chunk id travels in the payload.
func pointID(chunkID string) string {
	id := chunkID
	for len(id) < 32 {
		id += "0"
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", id[0:8], id[8:12], id[12:16], id[16:20], id[20:32])
}

func distanceName(metric string) string {
	if metric == "" || metric == vectorstore.DistanceCosine {
		return "Cosine"
	}
	return metric
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return domain.ErrIndex }

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (s *Store) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w: %w", method, path, err, domain.ErrIndex)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant %s %s: %w", method, path, &statusError{code: resp.StatusCode, body: string(data)})
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w: %w", err, domain.ErrIndex)
		}
	}
	return nil
}
