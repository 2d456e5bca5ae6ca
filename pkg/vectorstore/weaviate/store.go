// Package weaviate adapts a Weaviate instance to vectorstore.Store. Each
// collection maps to a class with vectorizer "none"; vectors are always
// supplied by the caller.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"ai-tutor-be/pkg/vectorstore"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// payload properties known to the tutor collections
var textProperties = []string{"user_id", "text", "summary", "category", "title", "reference_id"}
var intProperties = []string{"lesson_index", "chunk_index"}

type Store struct {
	client *weaviate.Client
}

var _ vectorstore.Store = (*Store)(nil)

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// NewStoreFromURL builds a client from a URL such as http://localhost:8080.
func NewStoreFromURL(rawURL string) (*Store, error) {
	scheme, host, found := strings.Cut(rawURL, "://")
	if !found {
		scheme, host = "http", rawURL
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}
	return NewStore(client), nil
}

// ClassName converts a collection name to a Weaviate class name,
// e.g. long_term_memory -> LongTermMemory.
func ClassName(collection string) string {
	var b strings.Builder
	upper := true
	for _, r := range collection {
		if r == '_' || r == '-' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.Schema().ClassGetter().WithClassName(ClassName(name)).Do(ctx)
	if err == nil {
		return true, nil
	}
	var werr *fault.WeaviateClientError
	if errors.As(err, &werr) && werr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, metric vectorstore.Metric) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check class: %w", err)
	}
	if exists {
		return nil
	}

	filterable := true
	var properties []*models.Property
	for _, p := range textProperties {
		properties = append(properties, &models.Property{
			Name:            p,
			DataType:        []string{"text"},
			IndexFilterable: &filterable,
			Tokenization:    "field",
		})
	}
	for _, p := range intProperties {
		properties = append(properties, &models.Property{
			Name:            p,
			DataType:        []string{"int"},
			IndexFilterable: &filterable,
		})
	}

	class := &models.Class{
		Class:       ClassName(name),
		Description: fmt.Sprintf("tutor collection %s (%d dimensions)", name, dimension),
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": string(metric),
		},
		Properties: properties,
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		// Lost a race with a concurrent creator.
		if exists, checkErr := s.CollectionExists(ctx, name); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create class %s: %w", class.Class, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	class := ClassName(name)
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", name, vectorstore.ErrCollectionNotFound)
	}

	for _, p := range points {
		found, err := s.client.Data().Checker().WithClassName(class).WithID(p.ID).Do(ctx)
		if err != nil {
			return fmt.Errorf("check object %s: %w", p.ID, err)
		}
		if found {
			if err := s.client.Data().Deleter().WithClassName(class).WithID(p.ID).Do(ctx); err != nil {
				return fmt.Errorf("replace object %s: %w", p.ID, err)
			}
		}
		_, err = s.client.Data().Creator().
			WithClassName(class).
			WithID(p.ID).
			WithProperties(p.Payload).
			WithVector(p.Vector).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("create object %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, name string, vector []float32, limit int, filter *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	class := ClassName(name)
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, vectorstore.ErrCollectionNotFound)
	}
	if limit <= 0 {
		limit = 5
	}

	var fields []graphql.Field
	for _, p := range textProperties {
		fields = append(fields, graphql.Field{Name: p})
	}
	for _, p := range intProperties {
		fields = append(fields, graphql.Field{Name: p})
	}
	fields = append(fields, graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}},
	})

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	query := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit)
	if where := buildWhere(filter); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search: %s", result.Errors[0].Message)
	}

	return parseHits(result.Data, class), nil
}

func buildWhere(filter *vectorstore.Filter) *filters.WhereBuilder {
	if filter == nil {
		return nil
	}
	var operands []*filters.WhereBuilder
	for _, c := range filter.Must {
		path := []string{c.Key}
		if c.Range == nil {
			operands = append(operands, equalTo(path, c.Match))
			continue
		}
		bounds := []struct {
			v  *float64
			op filters.WhereOperator
		}{
			{c.Range.Gt, filters.GreaterThan},
			{c.Range.Gte, filters.GreaterThanEqual},
			{c.Range.Lt, filters.LessThan},
			{c.Range.Lte, filters.LessThanEqual},
		}
		for _, b := range bounds {
			if b.v == nil {
				continue
			}
			operands = append(operands, filters.Where().
				WithPath(path).
				WithOperator(b.op).
				WithValueNumber(*b.v))
		}
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func equalTo(path []string, value interface{}) *filters.WhereBuilder {
	w := filters.Where().WithPath(path).WithOperator(filters.Equal)
	switch v := value.(type) {
	case int:
		return w.WithValueInt(int64(v))
	case int32:
		return w.WithValueInt(int64(v))
	case int64:
		return w.WithValueInt(v)
	case float32:
		return w.WithValueNumber(float64(v))
	case float64:
		if v == float64(int64(v)) {
			return w.WithValueInt(int64(v))
		}
		return w.WithValueNumber(v)
	case bool:
		return w.WithValueBoolean(v)
	default:
		return w.WithValueString(vectorstore.MatchString(v))
	}
}

func parseHits(data map[string]models.JSONObject, class string) []vectorstore.ScoredPoint {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]vectorstore.ScoredPoint, 0, len(objects))
	for _, obj := range objects {
		props, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		hit := vectorstore.ScoredPoint{Payload: map[string]interface{}{}}
		for k, v := range props {
			if k == "_additional" {
				if add, ok := v.(map[string]interface{}); ok {
					if id, ok := add["id"].(string); ok {
						hit.ID = id
					}
					if d, ok := add["distance"].(float64); ok {
						hit.Score = 1 - d
					}
				}
				continue
			}
			if v != nil {
				hit.Payload[k] = v
			}
		}
		hits = append(hits, hit)
	}
	return hits
}
