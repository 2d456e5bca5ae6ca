// Package memory merges short-term conversation turns and long-term
// semantic memories into one ordered list.
package memory

import (
	"context"
	"errors"
	"fmt"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/vectorstore"
)

// TurnSource is the slice of the conversation log the retriever reads.
type TurnSource interface {
	GetRecent(ctx context.Context, conversationId string, window int) ([]*entity.ConversationTurn, error)
}

type Config struct {
	Collection      string
	ShortTermWindow int
	LongTermTopK    int
}

type Retriever struct {
	turns    TurnSource
	store    vectorstore.Store
	embedder embedding.EmbeddingProvider
	cfg      Config
	logger   logger.ILogger
}

func NewRetriever(turns TurnSource, store vectorstore.Store, embedder embedding.EmbeddingProvider, cfg Config, log logger.ILogger) *Retriever {
	if cfg.ShortTermWindow <= 0 {
		cfg.ShortTermWindow = 25
	}
	if cfg.LongTermTopK <= 0 {
		cfg.LongTermTopK = 5
	}
	return &Retriever{
		turns:    turns,
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   log,
	}
}

// Retrieve returns short-term items followed by long-term items. A missing
// conversation is an error; a missing long-term collection is not.
func (r *Retriever) Retrieve(ctx context.Context, userID, conversationID, query string) ([]state.MemoryItem, error) {
	turns, err := r.turns.GetRecent(ctx, conversationID, r.cfg.ShortTermWindow)
	if err != nil {
		return nil, fmt.Errorf("short-term memories: %w", err)
	}

	items := make([]state.MemoryItem, 0, len(turns)+r.cfg.LongTermTopK)
	for _, t := range turns {
		items = append(items, FromTurn(t))
	}

	longTerm, err := r.longTerm(ctx, userID, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("TUTOR", "Long-term memory lookup failed, continuing without it", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return items, nil
	}
	return append(items, longTerm...), nil
}

func (r *Retriever) longTerm(ctx context.Context, userID, query string) ([]state.MemoryItem, error) {
	return r.search(ctx, query, r.cfg.LongTermTopK,
		vectorstore.NewFilter(vectorstore.MatchEq("user_id", userID)))
}

// Troubled returns the summaries of the user's troubled memories closest to
// query, for quiz generation. A missing collection yields no topics.
func (r *Retriever) Troubled(ctx context.Context, userID, query string, limit int) ([]string, error) {
	items, err := r.search(ctx, query, limit, vectorstore.NewFilter(
		vectorstore.MatchEq("user_id", userID),
		vectorstore.MatchEq("category", string(state.Troubled)),
	))
	if err != nil {
		return nil, err
	}
	topics := make([]string, len(items))
	for i, m := range items {
		topics[i] = m.Text
	}
	return topics, nil
}

func (r *Retriever) search(ctx context.Context, query string, limit int, filter *vectorstore.Filter) ([]state.MemoryItem, error) {
	exists, err := r.store.CollectionExists(ctx, r.cfg.Collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	resp, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, r.cfg.Collection, resp.Embedding.Values, limit, filter)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		// dropped between the check and the search
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items := make([]state.MemoryItem, len(hits))
	for i, h := range hits {
		items[i] = FromPayload(h.Payload)
	}
	return items, nil
}

// FromTurn renders a conversation turn as "role: text".
func FromTurn(t *entity.ConversationTurn) state.MemoryItem {
	return state.MemoryItem{
		Type: state.ShortTerm,
		Text: fmt.Sprintf("%s: %s", t.Role, t.Text),
	}
}

// FromPayload maps a long-term hit. Text prefers the summary and falls back
// to the raw response; a missing category reads as misc.
func FromPayload(payload map[string]interface{}) state.MemoryItem {
	text := stringField(payload, "summary")
	if text == "" {
		text = stringField(payload, "text")
	}
	category := stringField(payload, "category")
	if category == "" {
		category = string(state.Misc)
	}
	return state.MemoryItem{
		Type:     state.LongTerm,
		Text:     text,
		Category: category,
	}
}

func stringField(payload map[string]interface{}, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}
