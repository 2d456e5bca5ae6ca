package memory

import (
	"context"
	"sort"
	"sync"
	"testing"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversation(t *testing.T, log *ConversationLog, id, userId string) {
	t.Helper()
	require.NoError(t, log.Create(context.Background(), &entity.Conversation{Id: id, UserId: userId}))
}

func TestAllocateTurnIsGaplessUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := log.AllocateTurn(ctx, "c1")
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, log.Append(ctx, &entity.ConversationTurn{
				ConversationId: "c1", Turn: turn, Role: entity.RoleUser, Text: "hi",
			}))
		}()
	}
	wg.Wait()

	turns, err := log.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, writers)

	got := make([]int, len(turns))
	for i, tr := range turns {
		got[i] = int(tr.Turn)
	}
	assert.True(t, sort.IntsAreSorted(got))
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}

func TestGetRecentWindowAndTouch(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")

	for i := 0; i < 5; i++ {
		turn, err := log.AllocateTurn(ctx, "c1")
		require.NoError(t, err)
		require.NoError(t, log.Append(ctx, &entity.ConversationTurn{ConversationId: "c1", Turn: turn, Role: entity.RoleUser}))
	}

	listed, err := log.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].LastSeenAt)
	assert.NotNil(t, listed[0].LastMessageAt)

	recent, err := log.GetRecent(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(2), recent[0].Turn)
	assert.Equal(t, int64(4), recent[2].Turn)
	assert.NotEmpty(t, recent[0].MessageId)

	after, err := log.Get(ctx, "c1")
	require.NoError(t, err)
	assert.NotNil(t, after.LastSeenAt)
}

func TestGetTouchesLastSeen(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")

	first, err := log.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, first.LastSeenAt)

	second, err := log.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, second.LastSeenAt)
	assert.False(t, second.LastSeenAt.Before(*first.LastSeenAt))
}

func TestAppendExchangeNumbersBothTurns(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")

	for i := 0; i < 2; i++ {
		user := &entity.ConversationTurn{Role: entity.RoleUser, Text: "q"}
		system := &entity.ConversationTurn{Role: entity.RoleSystem, Text: "a"}
		require.NoError(t, log.AppendExchange(ctx, "c1", user, system))
		assert.Equal(t, int64(2*i), user.Turn)
		assert.Equal(t, int64(2*i+1), system.Turn)
		assert.NotEmpty(t, system.MessageId)
	}

	c, err := log.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.NextTurn)
	assert.NotNil(t, c.LastMessageAt)
}

func TestAppendExchangeIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")

	// turn 1 written without reserving it, so the system half collides
	require.NoError(t, log.Append(ctx, &entity.ConversationTurn{ConversationId: "c1", Turn: 1, Role: entity.RoleSystem, Text: "stray"}))

	err := log.AppendExchange(ctx, "c1",
		&entity.ConversationTurn{Role: entity.RoleUser, Text: "q"},
		&entity.ConversationTurn{Role: entity.RoleSystem, Text: "a"})
	require.Error(t, err)

	turns, err := log.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "stray", turns[0].Text)

	c, err := log.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.NextTurn)

	err = log.AppendExchange(ctx, "nope", &entity.ConversationTurn{}, &entity.ConversationTurn{})
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
}

func TestMissingConversation(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()

	_, err := log.GetRecent(ctx, "nope", 25)
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)

	_, err = log.AllocateTurn(ctx, "nope")
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)

	err = log.Append(ctx, &entity.ConversationTurn{ConversationId: "nope"})
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
}

func TestDeletedConversationIsHidden(t *testing.T) {
	ctx := context.Background()
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")
	newConversation(t, log, "c2", "u1")

	require.NoError(t, log.SetStatus(ctx, "c1", entity.ConversationDeleted))

	_, err := log.Get(ctx, "c1")
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)

	list, err := log.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].Id)
}

func TestCreateRejectsDuplicateIds(t *testing.T) {
	log := NewConversationLog()
	newConversation(t, log, "c1", "u1")

	err := log.Create(context.Background(), &entity.Conversation{Id: "c1", UserId: "u2"})
	assert.ErrorIs(t, err, tutorerr.ErrConversationExists)
}

func TestCreateGeneratesId(t *testing.T) {
	log := NewConversationLog()
	c := &entity.Conversation{UserId: "u1"}
	require.NoError(t, log.Create(context.Background(), c))
	assert.NotEmpty(t, c.Id)
	assert.Equal(t, entity.ConversationActive, c.Status)
}
