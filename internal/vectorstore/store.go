// Package vectorstore defines the vector index contract shared by drivers.
package vectorstore

import (
	"context"
	"sort"
	"time"
)

// Distance metrics supported by the drivers.
const (
	DistanceCosine = "cosine"
)

// Payload is the metadata persisted alongside a chunk vector.
type Payload struct {
	Text        string   `json:"text"`
	Path        string   `json:"path"`
	Fingerprint string   `json:"fingerprint"`
	Seq         int      `json:"seq"`
	TimeFrom    int64    `json:"time_from"` // unix seconds, 0 when unknown
	TimeTo      int64    `json:"time_to"`
	Severities  []string `json:"severities"`
}

// IndexedVector is the persisted unit: chunk id, embedding, payload.
type IndexedVector struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredVector is one retrieval hit.
type ScoredVector struct {
	IndexedVector
	Score float64
}

// Filter restricts search by payload metadata. Zero values mean "no
// restriction". The time window matches chunks whose record range overlaps it.
type Filter struct {
	Severity string
	Since    time.Time
	Until    time.Time
}

// IsEmpty reports whether the filter restricts anything.
func (f *Filter) IsEmpty() bool {
	return f == nil || (f.Severity == "" && f.Since.IsZero() && f.Until.IsZero())
}

// Store is the vector index client contract.
type Store interface {
	// EnsureCollection creates the collection if absent (idempotent). An
	// existing collection with a different dimension fails fast with
	// domain.ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, name string, dimension int, metric string) error

	// Upsert writes vectors keyed by id; re-upserting an id overwrites,
	// never duplicates. An empty batch is a no-op.
	Upsert(ctx context.Context, name string, vectors []IndexedVector) error

	// Search returns at most k hits ordered by descending score, ties
	// broken by ascending id.
	Search(ctx context.Context, name string, vector []float32, k int, filter *Filter) ([]ScoredVector, error)

	// Count returns the number of stored vectors in the collection.
	Count(ctx context.Context, name string) (int, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	Close()
}

// SortResults orders hits by descending score, ties by ascending id, so
// search output is deterministic regardless of driver iteration order.
func SortResults(results []ScoredVector) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// Matches reports whether a payload passes the filter. Drivers that push
// filtering to the server need not call this; the memory driver does.
func (f *Filter) Matches(p Payload) bool {
	if f.IsEmpty() {
		return true
	}
	if f.Severity != "" {
		found := false
		for _, s := range p.Severities {
			if s == f.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && p.TimeTo != 0 && p.TimeTo < f.Since.Unix() {
		return false
	}
	if !f.Until.IsZero() && p.TimeFrom != 0 && p.TimeFrom > f.Until.Unix() {
		return false
	}
	return true
}
