// Package pgvector stores collections in Postgres through gorm, using the
// pgvector extension for cosine distance and a jsonb column for payloads.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-tutor-be/internal/model"
	"ai-tutor-be/pkg/vectorstore"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

var _ vectorstore.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := s.collection(ctx, name)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, metric vectorstore.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("pgvector: invalid dimension %d", dimension)
	}
	row := model.VectorCollection{Name: name, Dimension: dimension, Metric: string(metric)}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (s *Store) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	col, err := s.collection(ctx, name)
	if err != nil {
		return err
	}

	rows := make([]model.VectorPoint, len(points))
	for i, p := range points {
		if len(p.Vector) != col.Dimension {
			return fmt.Errorf("point %s has %d dimensions, want %d: %w", p.ID, len(p.Vector), col.Dimension, vectorstore.ErrDimensionMismatch)
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload of %s: %w", p.ID, err)
		}
		rows[i] = model.VectorPoint{
			Collection: name,
			Id:         p.ID,
			Embedding:  pgvector.NewVector(p.Vector),
			Payload:    datatypes.JSON(payload),
		}
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "payload", "updated_at"}),
		}).
		Create(&rows).Error
}

func (s *Store) Search(ctx context.Context, name string, vector []float32, limit int, filter *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	col, err := s.collection(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != col.Dimension {
		return nil, fmt.Errorf("query has %d dimensions, want %d: %w", len(vector), col.Dimension, vectorstore.ErrDimensionMismatch)
	}
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		Id      string
		Payload datatypes.JSON
		Score   float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)
	query := s.db.WithContext(ctx).
		Table("vector_points").
		Select("id, payload, 1 - (embedding <=> ?) AS score", queryVector).
		Where("collection = ?", name)
	query = applyFilter(query, filter)

	err = query.
		Order(gorm.Expr("embedding <=> ?", queryVector)).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	hits := make([]vectorstore.ScoredPoint, len(results))
	for i, r := range results {
		payload := map[string]interface{}{}
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", r.Id, err)
			}
		}
		hits[i] = vectorstore.ScoredPoint{ID: r.Id, Score: r.Score, Payload: payload}
	}
	return hits, nil
}

func (s *Store) collection(ctx context.Context, name string) (*model.VectorCollection, error) {
	var col model.VectorCollection
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&col).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", name, vectorstore.ErrCollectionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// applyFilter translates payload conditions into jsonb predicates.
func applyFilter(db *gorm.DB, filter *vectorstore.Filter) *gorm.DB {
	if filter == nil {
		return db
	}
	for _, c := range filter.Must {
		if c.Range == nil {
			db = db.Where("payload ->> ? = ?", c.Key, vectorstore.MatchString(c.Match))
			continue
		}
		numeric := "CASE WHEN jsonb_typeof(payload -> ?) = 'number' THEN (payload ->> ?)::float8 END"
		if c.Range.Gt != nil {
			db = db.Where(numeric+" > ?", c.Key, c.Key, *c.Range.Gt)
		}
		if c.Range.Gte != nil {
			db = db.Where(numeric+" >= ?", c.Key, c.Key, *c.Range.Gte)
		}
		if c.Range.Lt != nil {
			db = db.Where(numeric+" < ?", c.Key, c.Key, *c.Range.Lt)
		}
		if c.Range.Lte != nil {
			db = db.Where(numeric+" <= ?", c.Key, c.Key, *c.Range.Lte)
		}
	}
	return db
}
