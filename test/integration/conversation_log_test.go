package integration

import (
	"context"
	"testing"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertExchangeIsAtomic runs the same exchange checks against any backend.
func assertExchangeIsAtomic(t *testing.T, repo contract.ConversationLog) {
	t.Helper()
	ctx := context.Background()

	conv := &entity.Conversation{Id: "it-" + uuid.NewString(), UserId: "u-it"}
	require.NoError(t, repo.Create(ctx, conv))

	user := &entity.ConversationTurn{Role: entity.RoleUser, Text: "Xin chào"}
	system := &entity.ConversationTurn{Role: entity.RoleSystem, Text: "Chào bạn!"}
	require.NoError(t, repo.AppendExchange(ctx, conv.Id, user, system))
	assert.Equal(t, int64(0), user.Turn)
	assert.Equal(t, int64(1), system.Turn)

	seen, err := repo.Get(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seen.NextTurn)
	assert.NotNil(t, seen.LastSeenAt)
	assert.NotNil(t, seen.LastMessageAt)

	// turn 3 written without reserving it, so the next system half collides
	require.NoError(t, repo.Append(ctx, &entity.ConversationTurn{
		ConversationId: conv.Id, Turn: 3, Role: entity.RoleSystem, Text: "stray",
	}))
	err = repo.AppendExchange(ctx, conv.Id,
		&entity.ConversationTurn{Role: entity.RoleUser, Text: "q"},
		&entity.ConversationTurn{Role: entity.RoleSystem, Text: "a"})
	require.Error(t, err)

	history, err := repo.History(ctx, conv.Id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "Chào bạn!", history[1].Text)
	assert.Equal(t, "stray", history[2].Text)

	after, err := repo.Get(ctx, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.NextTurn)

	err = repo.AppendExchange(ctx, "missing-"+conv.Id, &entity.ConversationTurn{}, &entity.ConversationTurn{})
	assert.ErrorIs(t, err, tutorerr.ErrConversationNotFound)
}
