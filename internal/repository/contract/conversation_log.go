package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
)

// ConversationLog is the append-only, turn-numbered message store.
//
// Every method that addresses a conversation returns an error wrapping
// tutorerr.ErrConversationNotFound when the conversation does not exist or
// has been marked deleted.
type ConversationLog interface {
	// Create stores a new active conversation. An empty Id is filled in.
	Create(ctx context.Context, conversation *entity.Conversation) error
	// Get returns the conversation and touches last_seen_at.
	Get(ctx context.Context, conversationId string) (*entity.Conversation, error)
	// List returns a user's conversations, newest first.
	List(ctx context.Context, userId string, limit, offset int) ([]*entity.Conversation, error)
	SetStatus(ctx context.Context, conversationId string, status entity.ConversationStatus) error

	// AllocateTurn atomically reserves the next turn number.
	AllocateTurn(ctx context.Context, conversationId string) (int64, error)
	// Append inserts a turn and stamps last_message_at. An empty MessageId
	// is filled in.
	Append(ctx context.Context, turn *entity.ConversationTurn) error
	// AppendExchange reserves two consecutive turn numbers and stores the
	// user and system turns together, filling in their Turn fields. On error
	// neither turn is stored and the counter is unchanged.
	AppendExchange(ctx context.Context, conversationId string, user, system *entity.ConversationTurn) error
	// GetRecent returns up to window most recent turns, oldest first, and
	// touches last_seen_at in the same operation. window <= 0 means all.
	GetRecent(ctx context.Context, conversationId string, window int) ([]*entity.ConversationTurn, error)
	// History returns every turn, oldest first.
	History(ctx context.Context, conversationId string) ([]*entity.ConversationTurn, error)
}
