package service

import (
	"context"
	"fmt"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/tutorerr"
)

type IConversationService interface {
	Create(ctx context.Context, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	Show(ctx context.Context, userId string, conversationId string) (*dto.ConversationResponse, error)
	GetAll(ctx context.Context, query *dto.ListConversationsQuery) ([]*dto.ConversationResponse, error)
	History(ctx context.Context, userId string, conversationId string) ([]*dto.TurnResponse, error)
	Archive(ctx context.Context, userId string, conversationId string) error
	Delete(ctx context.Context, userId string, conversationId string) error
}

type conversationService struct {
	conversations contract.ConversationLog
	quizzes       contract.QuizSessionRepository
	logger        logger.ILogger
}

func NewConversationService(conversations contract.ConversationLog, quizzes contract.QuizSessionRepository, log logger.ILogger) IConversationService {
	return &conversationService{
		conversations: conversations,
		quizzes:       quizzes,
		logger:        log,
	}
}

func (s *conversationService) Create(ctx context.Context, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	conversation := &entity.Conversation{
		Id:     req.Id,
		UserId: req.UserId,
		Status: entity.ConversationActive,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}

	s.logger.Info("TUTOR", "Conversation created", map[string]interface{}{
		"user_id":         conversation.UserId,
		"conversation_id": conversation.Id,
	})
	return toConversationResponse(conversation), nil
}

func (s *conversationService) Show(ctx context.Context, userId string, conversationId string) (*dto.ConversationResponse, error) {
	conversation, err := s.owned(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	return toConversationResponse(conversation), nil
}

func (s *conversationService) GetAll(ctx context.Context, query *dto.ListConversationsQuery) ([]*dto.ConversationResponse, error) {
	conversations, err := s.conversations.List(ctx, query.UserId, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		res = append(res, toConversationResponse(c))
	}
	return res, nil
}

func (s *conversationService) History(ctx context.Context, userId string, conversationId string) ([]*dto.TurnResponse, error) {
	if _, err := s.owned(ctx, userId, conversationId); err != nil {
		return nil, err
	}

	turns, err := s.conversations.History(ctx, conversationId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.TurnResponse, 0, len(turns))
	for _, t := range turns {
		res = append(res, &dto.TurnResponse{
			MessageId: t.MessageId,
			Turn:      t.Turn,
			Role:      string(t.Role),
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		})
	}
	return res, nil
}

func (s *conversationService) Archive(ctx context.Context, userId string, conversationId string) error {
	if _, err := s.owned(ctx, userId, conversationId); err != nil {
		return err
	}
	return s.conversations.SetStatus(ctx, conversationId, entity.ConversationArchived)
}

// Delete marks the conversation deleted; its turns are kept. Any quiz on
// it is dropped.
func (s *conversationService) Delete(ctx context.Context, userId string, conversationId string) error {
	if _, err := s.owned(ctx, userId, conversationId); err != nil {
		return err
	}
	if err := s.conversations.SetStatus(ctx, conversationId, entity.ConversationDeleted); err != nil {
		return err
	}
	if err := s.quizzes.Delete(ctx, conversationId); err != nil {
		s.logger.Warn("TUTOR", "Failed to drop quiz of deleted conversation", map[string]interface{}{
			"conversation_id": conversationId,
			"error":           err.Error(),
		})
	}
	return nil
}

// owned loads the conversation and hides it from other users. An empty
// userId skips the check.
func (s *conversationService) owned(ctx context.Context, userId string, conversationId string) (*entity.Conversation, error) {
	conversation, err := s.conversations.Get(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if userId != "" && conversation.UserId != userId {
		return nil, fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrConversationNotFound)
	}
	return conversation, nil
}

func toConversationResponse(c *entity.Conversation) *dto.ConversationResponse {
	return &dto.ConversationResponse{
		Id:            c.Id,
		UserId:        c.UserId,
		Status:        string(c.Status),
		Turns:         c.NextTurn,
		CreatedAt:     c.CreatedAt,
		LastSeenAt:    c.LastSeenAt,
		LastMessageAt: c.LastMessageAt,
	}
}
