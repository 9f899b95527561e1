// Package redis implements the vector index over Redis 8+ via rueidis,
// using FT.CREATE / FT.SEARCH with HASH storage and KNN queries.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements vectorstore.Store via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "lograg:"
	}

	return &Store{client: client, prefix: prefix}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w: %w", err, domain.ErrIndex)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureCollection creates the FT index if absent. An existing index records
// its dimension in a meta hash; a mismatch fails fast instead of writing
// incompatible vectors.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int, metric string) error {
	exists, err := s.indexExists(ctx, s.indexName(name))
	if err != nil {
		return err
	}
	if exists {
		meta, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.metaKey(name)).Build()).AsStrMap()
		if err != nil {
			return &indexError{op: "meta", err: err}
		}
		if dimStr, ok := meta["dimension"]; ok {
			got, _ := strconv.Atoi(dimStr)
			if got != dimension {
				return domain.NewDimensionMismatch(got, dimension)
			}
		}
		return nil
	}

	args := []string{
		s.indexName(name),
		"ON", "HASH",
		"PREFIX", "1", s.docPrefix(name),
		"SCHEMA",
		"chunk_id", "TAG",
		"path", "TAG",
		"severities", "TAG", "SEPARATOR", ",",
		"time_from", "NUMERIC",
		"time_to", "NUMERIC",
		"vector", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimension),
		"DISTANCE_METRIC", distanceName(metric),
	}
	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if !isRedisErr(err, "index already exists") {
			return &indexError{op: "create index", err: err}
		}
	}

	metaCmd := s.client.B().Hset().Key(s.metaKey(name)).
		FieldValue().
		FieldValue("dimension", strconv.Itoa(dimension)).
		FieldValue("metric", distanceName(metric)).
		Build()
	if err := s.client.Do(ctx, metaCmd).Error(); err != nil {
		return &indexError{op: "write meta", err: err}
	}
	return nil
}

// Upsert stores each vector as a hash keyed by chunk id, all in one DoMulti
// round-trip. Re-upserting an id overwrites the same key.
func (s *Store) Upsert(ctx context.Context, name string, vectors []vectorstore.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(vectors))
	for i, v := range vectors {
		cmds[i] = s.client.B().Hset().Key(s.docKey(name, v.ID)).
			FieldValue().
			FieldValue("chunk_id", v.ID).
			FieldValue("text", v.Payload.Text).
			FieldValue("path", v.Payload.Path).
			FieldValue("fingerprint", v.Payload.Fingerprint).
			FieldValue("seq", strconv.Itoa(v.Payload.Seq)).
			FieldValue("time_from", strconv.FormatInt(v.Payload.TimeFrom, 10)).
			FieldValue("time_to", strconv.FormatInt(v.Payload.TimeTo, 10)).
			FieldValue("severities", strings.Join(v.Payload.Severities, ",")).
			FieldValue("vector", vectorToBytes(v.Vector)).
			Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &indexError{op: "upsert", err: fmt.Errorf("key %s: %w", s.docKey(name, vectors[i].ID), err)}
		}
	}
	return nil
}

// Search runs a KNN query via FT.SEARCH with an optional tag/numeric
// pre-filter. Cosine distance is converted to similarity, clamped to [0,1].
func (s *Store) Search(
	ctx context.Context, name string, vector []float32, k int, filter *vectorstore.Filter,
) ([]vectorstore.ScoredVector, error) {
	if k <= 0 {
		k = 5
	}

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", k)
	var queryStr string
	if filterStr := buildFilter(filter); filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = fmt.Sprintf("*=>%s", knnPart)
	}

	// __vector_score must be requested explicitly: with a RETURN clause the
	// server only sends the listed attributes, and a hit without its distance
	// would score 0 and fall below any cutoff.
	args := []string{
		s.indexName(name), queryStr,
		"RETURN", "9",
		"chunk_id", "text", "path", "fingerprint", "seq", "time_from", "time_to", "severities",
		"__vector_score",
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &indexError{op: "search", err: err}
	}

	results := parseKNNResult(raw)
	vectorstore.SortResults(results)
	return results, nil
}

// Count returns document count via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(name), "*", "LIMIT", "0", "0").Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &indexError{op: "count", err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) indexExists(ctx context.Context, index string) (bool, error) {
	cmd := s.client.B().Arbitrary("FT.INFO").Args(index).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &indexError{op: "index info", err: err}
	}
	return true, nil
}

func (s *Store) indexName(collection string) string {
	return s.prefix + "idx:" + collection
}

func (s *Store) docPrefix(collection string) string {
	return s.prefix + collection + ":doc:"
}

func (s *Store) docKey(collection, id string) string {
	return s.docPrefix(collection) + id
}

func (s *Store) metaKey(collection string) string {
	return s.prefix + collection + ":meta"
}

// --- result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) []vectorstore.ScoredVector {
	if len(raw) == 0 {
		return nil
	}

	total, err := raw[0].AsInt64()
	if err != nil || total == 0 {
		return nil
	}

	results := make([]vectorstore.ScoredVector, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		fieldsRaw, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldsRaw)

		seq, _ := strconv.Atoi(fields["seq"])
		timeFrom, _ := strconv.ParseInt(fields["time_from"], 10, 64)
		timeTo, _ := strconv.ParseInt(fields["time_to"], 10, 64)

		var severities []string
		if fields["severities"] != "" {
			severities = strings.Split(fields["severities"], ",")
		}

		sv := vectorstore.ScoredVector{
			IndexedVector: vectorstore.IndexedVector{
				ID: fields["chunk_id"],
				Payload: vectorstore.Payload{
					Text:        fields["text"],
					Path:        fields["path"],
					Fingerprint: fields["fingerprint"],
					Seq:         seq,
					TimeFrom:    timeFrom,
					TimeTo:      timeTo,
					Severities:  severities,
				},
			},
		}

		if distStr, ok := fields["__vector_score"]; ok {
			if d, err := strconv.ParseFloat(distStr, 64); err == nil {
				sv.Score = max(0, 1.0-d) // cosine distance → similarity, clamped to [0,1]
			}
		}

		results = append(results, sv)
	}

	return results
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- filter building ---

// buildFilter translates the metadata filter into an FT.SEARCH pre-filter.
// Chunks with unknown time range carry 0 in both numeric fields and must
// still pass the since bound, hence the OR group.
func buildFilter(f *vectorstore.Filter) string {
	if f.IsEmpty() {
		return ""
	}

	var parts []string
	if f.Severity != "" {
		parts = append(parts, fmt.Sprintf("@severities:{%s}", tagEscaper.Replace(f.Severity)))
	}
	if !f.Since.IsZero() {
		parts = append(parts, fmt.Sprintf("(@time_to:[%d +inf] | @time_to:[0 0])", f.Since.Unix()))
	}
	if !f.Until.IsZero() {
		parts = append(parts, fmt.Sprintf("@time_from:[-inf %d]", f.Until.Unix()))
	}
	return strings.Join(parts, " ")
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"{", "\\{",
	"}", "\\}",
	":", "\\:",
	"-", "\\-",
	"|", "\\|",
	" ", "\\ ",
)

func distanceName(metric string) string {
	if metric == "" || metric == vectorstore.DistanceCosine {
		return "COSINE"
	}
	return strings.ToUpper(metric)
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

// indexError wraps a driver failure so callers can match domain.ErrIndex.
type indexError struct {
	op  string
	err error
}

func (e *indexError) Error() string {
	return fmt.Sprintf("redis %s: %v", e.op, e.err)
}

func (e *indexError) Unwrap() error { return domain.ErrIndex }
