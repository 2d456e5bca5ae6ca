package model

import "time"

type Conversation struct {
	Id            string     `gorm:"type:text;primaryKey"`
	UserId        string     `gorm:"type:text;not null;index"`
	Status        string     `gorm:"type:varchar(16);not null;default:active;index"`
	NextTurn      int64      `gorm:"not null;default:0"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
	LastSeenAt    *time.Time `gorm:"index"`
	LastMessageAt *time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

type ConversationTurn struct {
	MessageId      string    `gorm:"type:varchar(26);primaryKey"` // ULID
	ConversationId string    `gorm:"type:text;not null;uniqueIndex:idx_conversation_turn"`
	Turn           int64     `gorm:"not null;uniqueIndex:idx_conversation_turn"`
	Role           string    `gorm:"type:varchar(16);not null"`
	Text           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
