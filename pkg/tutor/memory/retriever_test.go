package memory

import (
	"context"
	"errors"
	"testing"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	repomemory "ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"
	"ai-tutor-be/pkg/tutor/tutortest"
	"ai-tutor-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const dim = 16

type fixture struct {
	log      *repomemory.ConversationLog
	store    *vectorstore.MemoryStore
	embedder *tutortest.Embedder
	r        *Retriever
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		log:      repomemory.NewConversationLog(),
		store:    vectorstore.NewMemoryStore(),
		embedder: tutortest.NewEmbedder(dim),
	}
	f.r = NewRetriever(f.log, f.store, f.embedder, Config{
		Collection:      "long_term_memory",
		ShortTermWindow: 3,
		LongTermTopK:    5,
	}, logger.NewFromZap(zaptest.NewLogger(t)))
	require.NoError(t, f.log.Create(context.Background(), &entity.Conversation{Id: "c1", UserId: "u1"}))
	return f
}

func (f *fixture) appendTurn(t *testing.T, role entity.TurnRole, text string) {
	t.Helper()
	ctx := context.Background()
	turn, err := f.log.AllocateTurn(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, f.log.Append(ctx, &entity.ConversationTurn{ConversationId: "c1", Turn: turn, Role: role, Text: text}))
}

func (f *fixture) addMemory(t *testing.T, id, userID, summary, category string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateCollection(ctx, "long_term_memory", dim, vectorstore.MetricCosine))
	payload := map[string]interface{}{"user_id": userID, "text": "raw " + summary, "summary": summary}
	if category != "" {
		payload["category"] = category
	}
	require.NoError(t, f.store.Upsert(ctx, "long_term_memory", []vectorstore.Point{
		{ID: id, Vector: f.embedder.Vector(summary), Payload: payload},
	}))
}

func TestRetrieveColdStart(t *testing.T) {
	f := newFixture(t)

	items, err := f.r.Retrieve(context.Background(), "u1", "c1", "hello")
	require.NoError(t, err)
	assert.Empty(t, items)

	exists, err := f.store.CollectionExists(context.Background(), "long_term_memory")
	require.NoError(t, err)
	assert.False(t, exists, "reads must not create the collection")
}

func TestRetrieveMissingConversation(t *testing.T) {
	f := newFixture(t)

	_, err := f.r.Retrieve(context.Background(), "u1", "missing", "hello")
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
}

func TestRetrieveShortTermBeforeLongTerm(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"one", "two", "three", "four"} {
		f.appendTurn(t, entity.RoleUser, text)
	}
	f.addMemory(t, "m1", "u1", "tones in vietnamese", "troubled")

	items, err := f.r.Retrieve(context.Background(), "u1", "c1", "vietnamese tones")
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, state.MemoryItem{Type: state.ShortTerm, Text: "user: two"}, items[0])
	assert.Equal(t, "user: four", items[2].Text)
	assert.Equal(t, state.MemoryItem{Type: state.LongTerm, Text: "tones in vietnamese", Category: "troubled"}, items[3])
}

func TestRetrieveIsUserScoped(t *testing.T) {
	f := newFixture(t)
	f.addMemory(t, "m1", "u1", "greetings", "known")
	f.addMemory(t, "m2", "u2", "greetings", "troubled")

	items, err := f.r.Retrieve(context.Background(), "u1", "c1", "greetings")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "known", items[0].Category)
}

func TestRetrieveTouchesLastSeen(t *testing.T) {
	f := newFixture(t)

	_, err := f.r.Retrieve(context.Background(), "u1", "c1", "hi")
	require.NoError(t, err)

	c, err := f.log.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, c.LastSeenAt)
}

func TestRetrieveDegradesOnEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.appendTurn(t, entity.RoleUser, "hi")
	f.addMemory(t, "m1", "u1", "greetings", "known")
	f.embedder.Err = errors.New("embedding down")

	items, err := f.r.Retrieve(context.Background(), "u1", "c1", "greetings")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, state.ShortTerm, items[0].Type)
}

func TestTroubledTopics(t *testing.T) {
	f := newFixture(t)

	topics, err := f.r.Troubled(context.Background(), "u1", "review", 5)
	require.NoError(t, err)
	assert.Empty(t, topics)

	f.addMemory(t, "m1", "u1", "tones", "troubled")
	f.addMemory(t, "m2", "u1", "greetings", "known")
	f.addMemory(t, "m3", "u2", "numbers", "troubled")

	topics, err = f.r.Troubled(context.Background(), "u1", "review", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"tones"}, topics)
}

func TestFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    state.MemoryItem
	}{
		{
			"summary preferred",
			map[string]interface{}{"summary": "s", "text": "t", "category": "known"},
			state.MemoryItem{Type: state.LongTerm, Text: "s", Category: "known"},
		},
		{
			"text fallback",
			map[string]interface{}{"text": "t", "category": "troubled"},
			state.MemoryItem{Type: state.LongTerm, Text: "t", Category: "troubled"},
		},
		{
			"missing category",
			map[string]interface{}{"summary": "s"},
			state.MemoryItem{Type: state.LongTerm, Text: "s", Category: "misc"},
		},
		{
			"non-string fields",
			map[string]interface{}{"summary": 3, "category": nil},
			state.MemoryItem{Type: state.LongTerm, Text: "", Category: "misc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromPayload(tt.payload))
		})
	}
}

func TestFromTurn(t *testing.T) {
	item := FromTurn(&entity.ConversationTurn{Role: entity.RoleSystem, Text: "It means hello."})
	assert.Equal(t, state.MemoryItem{Type: state.ShortTerm, Text: "system: It means hello."}, item)
}
