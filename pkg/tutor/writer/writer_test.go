package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/observability"
	"ai-tutor-be/internal/pkg/logger"
	repomemory "ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutortest"
	"ai-tutor-be/pkg/vectorstore"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const collection = "long_term_memory"

type recordingEvents struct {
	mu        sync.Mutex
	committed []string
}

func (r *recordingEvents) PublishMemoryCommitted(ctx context.Context, userID, conversationID, category, pointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, category+":"+pointID)
}

func (r *recordingEvents) PublishQuizFinished(ctx context.Context, userID, conversationID string, score, total int) {
}

type fixture struct {
	writer  *Writer
	turns   *repomemory.ConversationLog
	store   *vectorstore.MemoryStore
	llm     *tutortest.LLM
	embed   *tutortest.Embedder
	events  *recordingEvents
	metrics *observability.Metrics
}

func newFixture(t *testing.T, structuredOut string) *fixture {
	t.Helper()
	f := &fixture{
		turns:   repomemory.NewConversationLog(),
		store:   vectorstore.NewMemoryStore(),
		llm:     tutortest.NewLLM("unused", structuredOut),
		embed:   tutortest.NewEmbedder(16),
		events:  &recordingEvents{},
		metrics: observability.NewMetrics("t", prometheus.NewRegistry()),
	}
	f.writer = NewWriter(f.turns, f.llm, f.embed, f.store, vectorstore.NewBootstrapper(f.store),
		collection, f.events, f.metrics, logger.NewFromZap(zaptest.NewLogger(t)))
	require.NoError(t, f.turns.Create(context.Background(), &entity.Conversation{Id: "c1", UserId: "u1"}))
	return f
}

func TestCommitKnownStoresTurnsAndPoint(t *testing.T) {
	f := newFixture(t, `{"category":"known","summary":"Greeting explained"}`)
	ctx := context.Background()

	out, err := f.writer.Commit(ctx, "c1", "u1", "xin chào", "It means hello.")
	require.NoError(t, err)

	assert.Equal(t, state.Known, out.Category)
	assert.False(t, out.Fallback)
	assert.Equal(t, int64(0), out.UserTurn)
	assert.Equal(t, int64(1), out.SystemTurn)
	assert.NotEmpty(t, out.PointID)

	turns, err := f.turns.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, entity.RoleUser, turns[0].Role)
	assert.Equal(t, "xin chào", turns[0].Text)
	assert.Equal(t, entity.RoleSystem, turns[1].Role)
	assert.Equal(t, "It means hello.", turns[1].Text)

	points := f.store.Points(collection)
	require.Len(t, points, 1)
	assert.Equal(t, "u1", points[0].Payload["user_id"])
	assert.Equal(t, "known", points[0].Payload["category"])
	assert.Equal(t, "Greeting explained", points[0].Payload["summary"])
	assert.Equal(t, "It means hello.", points[0].Payload["text"])
	assert.Equal(t, f.embed.Vector("Greeting explained"), points[0].Vector)

	calls := f.llm.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSONFormat)
	assert.Contains(t, calls[0].Prompt, "xin chào")

	assert.Equal(t, []string{"known:" + out.PointID}, f.events.committed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MemoryWrites.WithLabelValues("known")))
}

func TestCommitMiscDiscardsPoint(t *testing.T) {
	f := newFixture(t, `{"category":"misc","summary":"small talk"}`)

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "hi", "Hello!")
	require.NoError(t, err)

	assert.Equal(t, state.Misc, out.Category)
	assert.Empty(t, out.PointID)
	assert.Equal(t, 0, f.store.Count(collection))
	assert.Empty(t, f.embed.Calls())
	assert.Empty(t, f.events.committed)

	turns, err := f.turns.History(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestCommitTroubledIsStored(t *testing.T) {
	f := newFixture(t, "```json\n{\"category\":\"Troubled\",\"summary\":\"Confused tones\"}\n```")

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "ma má mà?", "Those differ by tone.")
	require.NoError(t, err)

	assert.Equal(t, state.Troubled, out.Category)
	points := f.store.Points(collection)
	require.Len(t, points, 1)
	assert.Equal(t, "troubled", points[0].Payload["category"])
}

func TestClassificationFallback(t *testing.T) {
	long := strings.Repeat("á", 150)
	cases := map[string]string{
		"not json":         "I think this is known",
		"unknown category": `{"category":"great","summary":"x"}`,
		"missing summary":  `{"category":"known"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, raw)

			out, err := f.writer.Commit(context.Background(), "c1", "u1", "q", long)
			require.NoError(t, err)

			assert.True(t, out.Fallback)
			assert.Equal(t, state.Known, out.Category)
			assert.Equal(t, strings.Repeat("á", 100), out.Summary)
			assert.Equal(t, 1, f.store.Count(collection))
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ClassificationFallback))
		})
	}
}

func TestClassificationGeneratorErrorFallsBack(t *testing.T) {
	f := newFixture(t, "")
	f.llm.Err = errors.New("backend down")

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "q", "short answer")
	require.NoError(t, err)

	assert.True(t, out.Fallback)
	assert.Equal(t, "short answer", out.Summary)
}

func TestEmptyResponseIsNoop(t *testing.T) {
	f := newFixture(t, `{"category":"known","summary":"x"}`)

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "q", "  \n")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, f.llm.Calls())

	turns, err := f.turns.History(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMissingConversationFails(t *testing.T) {
	f := newFixture(t, `{"category":"known","summary":"x"}`)

	_, err := f.writer.Commit(context.Background(), "nope", "u1", "q", "answer")
	require.Error(t, err)
	assert.Equal(t, 0, f.store.Count(collection))
}

func TestEmbeddingFailureDoesNotFailCommit(t *testing.T) {
	f := newFixture(t, `{"category":"known","summary":"x"}`)
	f.embed.Err = errors.New("embedder down")

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "q", "answer")
	require.NoError(t, err)

	assert.Error(t, out.UpsertError)
	assert.Empty(t, out.PointID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MemoryUpsertFailures))

	turns, err := f.turns.History(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

// countingStore counts CreateCollection calls.
type countingStore struct {
	*vectorstore.MemoryStore
	mu      sync.Mutex
	creates int
}

func (s *countingStore) CreateCollection(ctx context.Context, name string, dim int, metric vectorstore.Metric) error {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.MemoryStore.CreateCollection(ctx, name, dim, metric)
}

func TestConcurrentCommitsCreateCollectionOnceAndNumberTurns(t *testing.T) {
	const n = 10
	turns := repomemory.NewConversationLog()
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore()}
	w := NewWriter(turns, tutortest.NewLLM("", `{"category":"known","summary":"s"}`), tutortest.NewEmbedder(8),
		store, vectorstore.NewBootstrapper(store), collection, nil, nil, logger.NewFromZap(zaptest.NewLogger(t)))
	ctx := context.Background()
	require.NoError(t, turns.Create(ctx, &entity.Conversation{Id: "c1", UserId: "u1"}))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := w.Commit(ctx, "c1", "u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.creates)
	assert.Equal(t, n, store.Count(collection))

	history, err := turns.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 2*n)
	for i, turn := range history {
		assert.Equal(t, int64(i), turn.Turn)
	}
}

func TestClassifyUsesJSONFormat(t *testing.T) {
	f := newFixture(t, "")
	f.llm.Handler = func(prompt string, opts llm.Options) (string, error) {
		if !opts.JSONFormat {
			return "", errors.New("expected JSON format")
		}
		return `{"category":"known","summary":"ok"}`, nil
	}

	res := f.writer.Classify(context.Background(), "q", "a")
	assert.False(t, res.IsFallback())
	assert.Equal(t, "ok", res.Value.Summary)
}

func TestMiscWithBlankSummaryStaysMisc(t *testing.T) {
	f := newFixture(t, `{"category":"misc","summary":""}`)

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "hi", "Hello there!")
	require.NoError(t, err)

	assert.False(t, out.Fallback)
	assert.Equal(t, state.Misc, out.Category)
	assert.Equal(t, 0, f.store.Count(collection))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ClassificationFallback))
}

func TestKnownWithBlankSummaryUsesResponse(t *testing.T) {
	f := newFixture(t, `{"category":"known","summary":"  "}`)

	out, err := f.writer.Commit(context.Background(), "c1", "u1", "q", "Chào is hello.")
	require.NoError(t, err)

	assert.False(t, out.Fallback)
	assert.Equal(t, state.Known, out.Category)
	assert.Equal(t, "Chào is hello.", out.Summary)
	assert.Equal(t, 1, f.store.Count(collection))
}

// systemAppendFails rejects per-turn appends of system turns.
type systemAppendFails struct {
	*repomemory.ConversationLog
}

func (l systemAppendFails) Append(ctx context.Context, turn *entity.ConversationTurn) error {
	if turn.Role == entity.RoleSystem {
		return errors.New("disk full")
	}
	return l.ConversationLog.Append(ctx, turn)
}

func TestCommitWritesExchangeInOneStep(t *testing.T) {
	log := systemAppendFails{repomemory.NewConversationLog()}
	ctx := context.Background()
	require.NoError(t, log.Create(ctx, &entity.Conversation{Id: "c1", UserId: "u1"}))
	store := vectorstore.NewMemoryStore()
	w := NewWriter(log, tutortest.NewLLM("", `{"category":"known","summary":"s"}`), tutortest.NewEmbedder(8),
		store, vectorstore.NewBootstrapper(store), collection, nil, nil, logger.NewFromZap(zaptest.NewLogger(t)))

	out, err := w.Commit(ctx, "c1", "u1", "q", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.UserTurn)
	assert.Equal(t, int64(1), out.SystemTurn)

	turns, err := log.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, entity.RoleSystem, turns[1].Role)
}

func TestFailedExchangeLeavesNoHalfWrittenTurn(t *testing.T) {
	f := newFixture(t, `{"category":"known","summary":"s"}`)
	ctx := context.Background()
	require.NoError(t, f.turns.Append(ctx, &entity.ConversationTurn{ConversationId: "c1", Turn: 1, Role: entity.RoleSystem, Text: "stray"}))

	out, err := f.writer.Commit(ctx, "c1", "u1", "q", "a")
	require.Error(t, err)
	assert.Nil(t, out)

	turns, err := f.turns.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "stray", turns[0].Text)

	c, err := f.turns.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.NextTurn)
	assert.Equal(t, 0, f.store.Count(collection))
	assert.Empty(t, f.events.committed)
}

// flakyStore fails Upsert with the queued errors before delegating.
type flakyStore struct {
	*vectorstore.MemoryStore
	mu      sync.Mutex
	errs    []error
	upserts int
}

func (s *flakyStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	s.mu.Lock()
	s.upserts++
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Upsert(ctx, collection, points)
}

func newStoreWriter(t *testing.T, store vectorstore.Store, metrics *observability.Metrics) (*Writer, *repomemory.ConversationLog) {
	t.Helper()
	turns := repomemory.NewConversationLog()
	require.NoError(t, turns.Create(context.Background(), &entity.Conversation{Id: "c1", UserId: "u1"}))
	w := NewWriter(turns, tutortest.NewLLM("", `{"category":"troubled","summary":"tones"}`), tutortest.NewEmbedder(8),
		store, vectorstore.NewBootstrapper(store), collection, nil, metrics, logger.NewFromZap(zaptest.NewLogger(t)))
	return w, turns
}

func TestUpsertFailureKeepsTurns(t *testing.T) {
	store := &flakyStore{MemoryStore: vectorstore.NewMemoryStore(), errs: []error{errors.New("store unavailable")}}
	metrics := observability.NewMetrics("t", prometheus.NewRegistry())
	w, turns := newStoreWriter(t, store, metrics)
	ctx := context.Background()

	out, err := w.Commit(ctx, "c1", "u1", "ma má?", "Tones differ.")
	require.NoError(t, err)

	require.Error(t, out.UpsertError)
	assert.Contains(t, out.UpsertError.Error(), "store unavailable")
	assert.Empty(t, out.PointID)
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, 0, store.Count(collection))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MemoryUpsertFailures))

	history, err := turns.History(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpsertRecreatesDroppedCollection(t *testing.T) {
	store := &flakyStore{MemoryStore: vectorstore.NewMemoryStore(), errs: []error{vectorstore.ErrCollectionNotFound}}
	w, _ := newStoreWriter(t, store, nil)

	out, err := w.Commit(context.Background(), "c1", "u1", "ma má?", "Tones differ.")
	require.NoError(t, err)

	assert.NoError(t, out.UpsertError)
	assert.NotEmpty(t, out.PointID)
	assert.Equal(t, 2, store.upserts)
	assert.Equal(t, 1, store.Count(collection))
}
