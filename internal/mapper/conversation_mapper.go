package mapper

import (
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	return &entity.Conversation{
		Id:            c.Id,
		UserId:        c.UserId,
		Status:        entity.ConversationStatus(c.Status),
		NextTurn:      c.NextTurn,
		CreatedAt:     c.CreatedAt,
		LastSeenAt:    c.LastSeenAt,
		LastMessageAt: c.LastMessageAt,
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}
	status := string(c.Status)
	if status == "" {
		status = string(entity.ConversationActive)
	}
	return &model.Conversation{
		Id:            c.Id,
		UserId:        c.UserId,
		Status:        status,
		NextTurn:      c.NextTurn,
		CreatedAt:     c.CreatedAt,
		LastSeenAt:    c.LastSeenAt,
		LastMessageAt: c.LastMessageAt,
	}
}

func (m *ConversationMapper) TurnToEntity(t *model.ConversationTurn) *entity.ConversationTurn {
	if t == nil {
		return nil
	}
	return &entity.ConversationTurn{
		MessageId:      t.MessageId,
		ConversationId: t.ConversationId,
		Turn:           t.Turn,
		Role:           entity.TurnRole(t.Role),
		Text:           t.Text,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *ConversationMapper) TurnToModel(t *entity.ConversationTurn) *model.ConversationTurn {
	if t == nil {
		return nil
	}
	return &model.ConversationTurn{
		MessageId:      t.MessageId,
		ConversationId: t.ConversationId,
		Turn:           t.Turn,
		Role:           string(t.Role),
		Text:           t.Text,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *ConversationMapper) TurnsToEntities(turns []*model.ConversationTurn) []*entity.ConversationTurn {
	out := make([]*entity.ConversationTurn, len(turns))
	for i, t := range turns {
		out[i] = m.TurnToEntity(t)
	}
	return out
}
