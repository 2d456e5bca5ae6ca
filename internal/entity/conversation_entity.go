package entity

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
	ConversationDeleted  ConversationStatus = "deleted"
)

type TurnRole string

const (
	RoleUser   TurnRole = "user"
	RoleSystem TurnRole = "system"
)

type Conversation struct {
	Id            string
	UserId        string
	Status        ConversationStatus
	NextTurn      int64
	CreatedAt     time.Time
	LastSeenAt    *time.Time
	LastMessageAt *time.Time
}

// ConversationTurn is immutable once appended.
type ConversationTurn struct {
	MessageId      string
	ConversationId string
	Turn           int64
	Role           TurnRole
	Text           string
	CreatedAt      time.Time
}

// NewMessageId returns a time-sortable ULID for a turn.
func NewMessageId() string {
	return ulid.Make().String()
}
