package specification

import (
	"ai-tutor-be/internal/entity"

	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID string
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// NotDeletedConversation hides conversations whose status is deleted.
type NotDeletedConversation struct{}

func (s NotDeletedConversation) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status <> ?", string(entity.ConversationDeleted))
}
