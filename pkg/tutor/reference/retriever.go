// Package reference looks up lesson material for a query.
package reference

import (
	"context"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/vectorstore"
)

type Retriever struct {
	store      vectorstore.Store
	embedder   embedding.EmbeddingProvider
	collection string
	topK       int
	logger     logger.ILogger
}

func NewRetriever(store vectorstore.Store, embedder embedding.EmbeddingProvider, collection string, topK int, log logger.ILogger) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		store:      store,
		embedder:   embedder,
		collection: collection,
		topK:       topK,
		logger:     log,
	}
}

// Retrieve returns reference texts in store order. It never fails: any
// error is logged and yields an empty list.
func (r *Retriever) Retrieve(ctx context.Context, query string, lessonID *int) []string {
	resp, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		r.warn("Reference embedding failed", lessonID, err)
		return []string{}
	}

	var filter *vectorstore.Filter
	if lessonID != nil {
		filter = vectorstore.NewFilter(vectorstore.MatchEq("lesson_index", *lessonID))
	}

	hits, err := r.store.Search(ctx, r.collection, resp.Embedding.Values, r.topK, filter)
	if err != nil {
		r.warn("Reference search failed", lessonID, err)
		return []string{}
	}

	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = TextFromPayload(h.Payload)
	}
	return docs
}

func (r *Retriever) warn(message string, lessonID *int, err error) {
	details := map[string]interface{}{
		"collection": r.collection,
		"error":      err.Error(),
	}
	if lessonID != nil {
		details["lesson_index"] = *lessonID
	}
	r.logger.Warn("TUTOR", message, details)
}

// TextFromPayload returns the text field, or "" when absent.
func TextFromPayload(payload map[string]interface{}) string {
	if s, ok := payload["text"].(string); ok {
		return s
	}
	return ""
}
