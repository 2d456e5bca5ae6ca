package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryCollection struct {
	dimension int
	metric    Metric
	points    map[string]Point
	order     []string
}

// MemoryStore is an in-process Store used by tests and the simulation CLI.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryStore) CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("vectorstore: invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &memoryCollection{
		dimension: dimension,
		metric:    metric,
		points:    make(map[string]Point),
	}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, name string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("upsert into %s: %w", name, ErrCollectionNotFound)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("point %s has %d dimensions, want %d: %w", p.ID, len(p.Vector), c.dimension, ErrDimensionMismatch)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: copyPayload(p.Payload),
		}
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, name string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("search %s: %w", name, ErrCollectionNotFound)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w", len(vector), c.dimension, ErrDimensionMismatch)
	}

	hits := make([]ScoredPoint, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		if !filter.Matches(p.Payload) {
			continue
		}
		hits = append(hits, ScoredPoint{
			ID:      p.ID,
			Score:   cosineSimilarity(vector, p.Vector),
			Payload: copyPayload(p.Payload),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Count reports the number of points in a collection; zero when absent.
func (s *MemoryStore) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// Points returns the stored points in insertion order.
func (s *MemoryStore) Points(name string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]Point, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		out = append(out, Point{ID: p.ID, Vector: p.Vector, Payload: copyPayload(p.Payload)})
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
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

func copyPayload(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
