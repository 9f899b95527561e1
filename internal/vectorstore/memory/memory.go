// Package memory is an in-process vector store used by tests and offline
// runs. Cosine similarity only.
package memory

import (
	"context"
	"math"
	"sync"

	"github.com/opsgrep/lograg/internal/domain"
	"github.com/opsgrep/lograg/internal/vectorstore"
)

type collection struct {
	dimension int
	vectors   map[string]vectorstore.IndexedVector
}

// Store implements vectorstore.Store in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// EnsureCollection creates the collection if absent; a dimension change is a
// configuration fault, not a silent rebuild.
func (s *Store) EnsureCollection(_ context.Context, name string, dimension int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		if col.dimension != dimension {
			return domain.NewDimensionMismatch(col.dimension, dimension)
		}
		return nil
	}
	s.collections[name] = &collection{
		dimension: dimension,
		vectors:   make(map[string]vectorstore.IndexedVector),
	}
	return nil
}

// Upsert overwrites by id. An empty batch is a no-op.
func (s *Store) Upsert(_ context.Context, name string, vectors []vectorstore.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return domain.ErrNotFound
	}
	for _, v := range vectors {
		if len(v.Vector) != col.dimension {
			return domain.NewDimensionMismatch(col.dimension, len(v.Vector))
		}
		col.vectors[v.ID] = v
	}
	return nil
}

// Search ranks by cosine similarity, descending, ties by ascending id.
func (s *Store) Search(
	_ context.Context, name string, vector []float32, k int, filter *vectorstore.Filter,
) ([]vectorstore.ScoredVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if len(vector) != col.dimension {
		return nil, domain.NewDimensionMismatch(col.dimension, len(vector))
	}

	results := make([]vectorstore.ScoredVector, 0, len(col.vectors))
	for _, v := range col.vectors {
		if !filter.Matches(v.Payload) {
			continue
		}
		results = append(results, vectorstore.ScoredVector{
			IndexedVector: v,
			Score:         cosine(vector, v.Vector),
		})
	}
	vectorstore.SortResults(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored vectors.
func (s *Store) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return len(col.vectors), nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
