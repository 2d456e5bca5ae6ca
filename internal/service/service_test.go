package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"
	"ai-tutor-be/pkg/tutor/tutortest"
	"ai-tutor-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const referenceCollection = "lesson_references"

func lessonText() string {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("Thanh điệu tiếng Việt có sáu dấu. ")
	}
	return b.String()
}

func newConsumer(t *testing.T, store *vectorstore.MemoryStore, sub *gochannel.GoChannel) IConsumerService {
	return NewConsumerService(sub, "INGEST_REFERENCE", referenceCollection, store,
		vectorstore.NewBootstrapper(store), tutortest.NewEmbedder(16), nil,
		logger.NewFromZap(zaptest.NewLogger(t)))
}

func TestIngestReferenceIsIdempotent(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	consumer := newConsumer(t, store, nil)
	payload := &dto.PublishIngestReferenceMessage{
		ReferenceId: "ref-1",
		LessonIndex: 2,
		Title:       "Thanh điệu",
		Content:     lessonText(),
	}

	n, err := consumer.Ingest(context.Background(), payload)
	require.NoError(t, err)
	require.Greater(t, n, 1)
	assert.Equal(t, n, store.Count(referenceCollection))

	again, err := consumer.Ingest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, n, again)
	assert.Equal(t, n, store.Count(referenceCollection))

	p := store.Points(referenceCollection)[0]
	assert.Equal(t, "ref-1", p.Payload["reference_id"])
	assert.Equal(t, 2, p.Payload["lesson_index"])
	assert.Equal(t, "Thanh điệu", p.Payload["title"])
	assert.NotEmpty(t, p.Payload["text"])
}

func TestIngestBlankReferenceWritesNothing(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	n, err := newConsumer(t, store, nil).Ingest(context.Background(), &dto.PublishIngestReferenceMessage{
		ReferenceId: "ref-2",
		Content:     "  ",
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.Count(referenceCollection))
}

func TestQueuedReferenceIsConsumed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	store := vectorstore.NewMemoryStore()
	require.NoError(t, newConsumer(t, store, pubSub).Consume(ctx))

	refs := NewReferenceService(NewPublisherService("INGEST_REFERENCE", pubSub), logger.NewFromZap(zaptest.NewLogger(t)))
	out, err := refs.Ingest(ctx, &dto.IngestReferenceRequest{LessonIndex: 1, Title: "Chào hỏi", Content: "Xin chào nghĩa là hello."})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ReferenceId)

	assert.Eventually(t, func() bool {
		return store.Count(referenceCollection) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

type invokerFunc func(ctx context.Context, req state.Request) (string, error)

func (f invokerFunc) Invoke(ctx context.Context, req state.Request) (string, error) {
	return f(ctx, req)
}

func TestTutorServiceInvoke(t *testing.T) {
	ctx := context.Background()
	conversations := memory.NewConversationLog()
	require.NoError(t, conversations.Create(ctx, &entity.Conversation{Id: "c1", UserId: "u1"}))

	var got state.Request
	svc := NewTutorService(invokerFunc(func(ctx context.Context, req state.Request) (string, error) {
		got = req
		return "Xin chào là lời chào.", nil
	}), conversations, logger.NewFromZap(zaptest.NewLogger(t)))

	lesson := 3
	out, err := svc.Invoke(ctx, &dto.InvokeRequest{
		UserId: "u1", ConversationId: "c1", UserInput: "Xin chào là gì?", LessonId: &lesson,
	})
	require.NoError(t, err)
	assert.Equal(t, "Xin chào là lời chào.", out.Result)
	assert.Equal(t, "c1", got.ConversationID)
	require.NotNil(t, got.LessonID)
	assert.Equal(t, 3, *got.LessonID)

	_, err = svc.Invoke(ctx, &dto.InvokeRequest{UserId: "u1", ConversationId: "c1", UserInput: "   "})
	assert.ErrorIs(t, err, tutorerr.ErrInvalidRequest)

	_, err = svc.Invoke(ctx, &dto.InvokeRequest{UserId: "u2", ConversationId: "c1", UserInput: "hi"})
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)

	_, err = svc.Invoke(ctx, &dto.InvokeRequest{UserId: "u1", ConversationId: "nope", UserInput: "hi"})
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
}

func TestConversationDeleteDropsQuiz(t *testing.T) {
	ctx := context.Background()
	conversations := memory.NewConversationLog()
	quizzes := memory.NewQuizSessionRepository()
	svc := NewConversationService(conversations, quizzes, logger.NewFromZap(zaptest.NewLogger(t)))

	created, err := svc.Create(ctx, &dto.CreateConversationRequest{UserId: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, created.Id)
	require.NoError(t, quizzes.Save(ctx, &entity.QuizSession{
		ConversationId: created.Id, UserId: "u1", State: entity.QuizAsking, Total: 2,
	}))

	_, err = svc.Show(ctx, "u2", created.Id)
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", created.Id), tutorerr.ErrConversationNotFound)

	require.NoError(t, svc.Delete(ctx, "u1", created.Id))
	_, err = svc.Show(ctx, "u1", created.Id)
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
	_, err = quizzes.Get(ctx, created.Id)
	assert.ErrorIs(t, err, tutorerr.ErrQuizNotFound)

	list, err := svc.GetAll(ctx, &dto.ListConversationsQuery{UserId: "u1"})
	require.NoError(t, err)
	assert.Empty(t, list)
}
