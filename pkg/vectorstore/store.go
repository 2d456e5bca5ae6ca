// Package vectorstore defines the collection-oriented similarity index the
// tutoring pipeline reads memories and references from, plus adapters for
// pgvector, weaviate and an in-process store.
package vectorstore

import (
	"context"
	"errors"
)

type Metric string

const (
	MetricCosine Metric = "cosine"
)

var (
	// ErrCollectionNotFound is returned by Search and Upsert when the
	// collection has not been created yet.
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")

	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension the collection was created with.
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
)

// Point is one vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search hit. Score is cosine similarity, higher is closer.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

// Store is implemented by every backend.
//
// CreateCollection must be idempotent: creating a collection that already
// exists (including one created concurrently by another caller) is not an
// error.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error
	Upsert(ctx context.Context, name string, points []Point) error
	Search(ctx context.Context, name string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error)
}
