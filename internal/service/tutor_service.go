package service

import (
	"context"
	"fmt"
	"strings"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"
)

type ITutorService interface {
	Invoke(ctx context.Context, req *dto.InvokeRequest) (*dto.InvokeResponse, error)
}

// Invoker runs one pipeline invocation.
type Invoker interface {
	Invoke(ctx context.Context, req state.Request) (string, error)
}

type tutorService struct {
	pipeline      Invoker
	conversations contract.ConversationLog
	logger        logger.ILogger
}

func NewTutorService(pipeline Invoker, conversations contract.ConversationLog, log logger.ILogger) ITutorService {
	return &tutorService{
		pipeline:      pipeline,
		conversations: conversations,
		logger:        log,
	}
}

func (s *tutorService) Invoke(ctx context.Context, req *dto.InvokeRequest) (*dto.InvokeResponse, error) {
	if strings.TrimSpace(req.UserInput) == "" {
		return nil, fmt.Errorf("%w: user_input is empty", tutorerr.ErrInvalidRequest)
	}

	conversation, err := s.conversations.Get(ctx, req.ConversationId)
	if err != nil {
		return nil, err
	}
	if conversation.UserId != req.UserId {
		s.logger.Warn("TUTOR", "Conversation owned by another user", map[string]interface{}{
			"user_id":         req.UserId,
			"conversation_id": req.ConversationId,
		})
		return nil, fmt.Errorf("conversation %s: %w", req.ConversationId, tutorerr.ErrConversationNotFound)
	}

	result, err := s.pipeline.Invoke(ctx, state.Request{
		UserID:         req.UserId,
		ConversationID: req.ConversationId,
		UserInput:      req.UserInput,
		LessonID:       req.LessonId,
		Preferences:    req.Preferences,
	})
	if err != nil {
		return nil, err
	}
	return &dto.InvokeResponse{Result: result}, nil
}
