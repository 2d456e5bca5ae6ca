// Package writer persists a finished exchange: both turns go to the
// conversation log, and troubled/known exchanges also become long-term
// memory points.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/observability"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/llm"
	tutorevents "ai-tutor-be/pkg/tutor/events"
	"ai-tutor-be/pkg/tutor/prompt"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/structured"
	"ai-tutor-be/pkg/vectorstore"

	"github.com/google/uuid"
)

const fallbackSummaryLen = 100

// TurnLog is the slice of the conversation log the writer needs.
type TurnLog interface {
	AppendExchange(ctx context.Context, conversationId string, user, system *entity.ConversationTurn) error
}

type Classification struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// Outcome describes what Commit stored.
type Outcome struct {
	Category    state.Category
	Summary     string
	Fallback    bool
	UserTurn    int64
	SystemTurn  int64
	PointID     string // empty when no point was stored
	UpsertError error  // set when the point could not be stored
}

type Writer struct {
	turns     TurnLog
	llm       llm.LLMProvider
	embedder  embedding.EmbeddingProvider
	store     vectorstore.Store
	bootstrap *vectorstore.Bootstrapper
	// collection receives the memory points
	collection string
	events     tutorevents.Publisher
	metrics    *observability.Metrics
	logger     logger.ILogger
}

func NewWriter(
	turns TurnLog,
	provider llm.LLMProvider,
	embedder embedding.EmbeddingProvider,
	store vectorstore.Store,
	bootstrap *vectorstore.Bootstrapper,
	collection string,
	events tutorevents.Publisher,
	metrics *observability.Metrics,
	log logger.ILogger,
) *Writer {
	return &Writer{
		turns:      turns,
		llm:        provider,
		embedder:   embedder,
		store:      store,
		bootstrap:  bootstrap,
		collection: collection,
		events:     events,
		metrics:    metrics,
		logger:     log,
	}
}

// Commit records the exchange. Only a failure to append a turn is
// returned; classification and memory storage problems are logged and
// reported in the Outcome. An empty response is a no-op.
func (w *Writer) Commit(ctx context.Context, conversationID, userID, userInput, response string) (*Outcome, error) {
	if strings.TrimSpace(response) == "" {
		return nil, nil
	}

	verdict := w.Classify(ctx, userInput, response)
	category, _ := state.ParseCategory(verdict.Value.Category)
	out := &Outcome{
		Category: category,
		Summary:  verdict.Value.Summary,
		Fallback: verdict.IsFallback(),
	}

	userTurn := &entity.ConversationTurn{ConversationId: conversationID, Role: entity.RoleUser, Text: userInput}
	systemTurn := &entity.ConversationTurn{ConversationId: conversationID, Role: entity.RoleSystem, Text: response}
	if err := w.turns.AppendExchange(ctx, conversationID, userTurn, systemTurn); err != nil {
		return nil, fmt.Errorf("append exchange: %w", err)
	}
	out.UserTurn, out.SystemTurn = userTurn.Turn, systemTurn.Turn
	w.metrics.CountMemoryWrite(string(category))

	if category == state.Misc {
		w.logger.Info("MEMORY", "Discarding misc exchange", map[string]interface{}{
			"user_id":         userID,
			"conversation_id": conversationID,
			"summary":         out.Summary,
		})
		return out, nil
	}

	pointID, err := w.storeMemory(ctx, userID, response, out.Summary, category)
	if err != nil {
		w.metrics.CountUpsertFailure()
		w.logger.Warn("MEMORY", "Failed to store long-term memory", map[string]interface{}{
			"user_id":         userID,
			"conversation_id": conversationID,
			"category":        string(category),
			"error":           err.Error(),
		})
		out.UpsertError = err
		return out, nil
	}
	out.PointID = pointID

	w.logger.Info("MEMORY", "Stored long-term memory", map[string]interface{}{
		"user_id":  userID,
		"category": string(category),
		"point_id": pointID,
		"summary":  out.Summary,
	})
	if w.events != nil {
		w.events.PublishMemoryCommitted(ctx, userID, conversationID, string(category), pointID)
	}
	return out, nil
}

// Classify asks the generator for a category and summary. It always
// returns a usable value; on any problem the exchange counts as known and
// the summary is the start of the response. A stored category with a blank
// summary keeps its category and gets the same substitute summary.
func (w *Writer) Classify(ctx context.Context, userInput, response string) structured.Result[Classification] {
	fallback := func() Classification {
		return Classification{Category: string(state.Known), Summary: truncateRunes(response, fallbackSummaryLen)}
	}

	raw, err := w.llm.Generate(ctx, prompt.BuildClassificationPrompt(userInput, response),
		llm.WithJSONFormat(), llm.WithTemperature(0))
	var res structured.Result[Classification]
	if err != nil {
		res = structured.Result[Classification]{Kind: structured.Fallback, Value: fallback(), Err: err}
	} else {
		res = structured.Parse(raw, func(c *Classification) error {
			if err := structured.RequireKeys(raw, "category", "summary"); err != nil {
				return err
			}
			category, ok := state.ParseCategory(c.Category)
			if !ok {
				return fmt.Errorf("unknown category %q", c.Category)
			}
			c.Category = string(category)
			if category != state.Misc && strings.TrimSpace(c.Summary) == "" {
				c.Summary = truncateRunes(response, fallbackSummaryLen)
			}
			return nil
		}, fallback)
	}

	if res.IsFallback() {
		w.metrics.CountClassificationFallback()
		w.logger.Warn("MEMORY", "Memory classification failed, using fallback", map[string]interface{}{
			"error": res.Err.Error(),
		})
	}
	return res
}

func (w *Writer) storeMemory(ctx context.Context, userID, response, summary string, category state.Category) (string, error) {
	resp, err := w.embedder.Generate(ctx, summary, embedding.TaskRetrievalDocument)
	if err != nil {
		return "", fmt.Errorf("embed summary: %w", err)
	}
	vector := resp.Embedding.Values

	if err := w.bootstrap.Ensure(ctx, w.collection, len(vector)); err != nil {
		return "", err
	}

	point := vectorstore.Point{
		ID:     uuid.NewString(),
		Vector: vector,
		Payload: map[string]interface{}{
			"user_id":  userID,
			"text":     response,
			"summary":  summary,
			"category": string(category),
		},
	}

	err = w.store.Upsert(ctx, w.collection, []vectorstore.Point{point})
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		// removed behind the bootstrapper's back
		w.bootstrap.Forget(w.collection)
		if err = w.bootstrap.Ensure(ctx, w.collection, len(vector)); err == nil {
			err = w.store.Upsert(ctx, w.collection, []vectorstore.Point{point})
		}
	}
	if err != nil {
		return "", fmt.Errorf("upsert memory point: %w", err)
	}
	return point.ID, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
