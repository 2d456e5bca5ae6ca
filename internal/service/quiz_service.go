package service

import (
	"context"
	"fmt"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/quiz"
	"ai-tutor-be/pkg/tutor/tutorerr"
)

type IQuizService interface {
	Start(ctx context.Context, conversationId string, req *dto.StartQuizRequest) (*dto.QuizResponse, error)
	Show(ctx context.Context, userId string, conversationId string) (*dto.QuizResponse, error)
	Next(ctx context.Context, userId string, conversationId string) (*dto.QuizResponse, error)
	Answer(ctx context.Context, userId string, conversationId string, req *dto.AnswerQuizRequest) (*dto.AnswerQuizResponse, error)
}

type quizService struct {
	engine        *quiz.Engine
	conversations contract.ConversationLog
}

func NewQuizService(engine *quiz.Engine, conversations contract.ConversationLog) IQuizService {
	return &quizService{
		engine:        engine,
		conversations: conversations,
	}
}

func (s *quizService) Start(ctx context.Context, conversationId string, req *dto.StartQuizRequest) (*dto.QuizResponse, error) {
	conversation, err := s.conversations.Get(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if conversation.UserId != req.UserId {
		return nil, fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrConversationNotFound)
	}

	session, err := s.engine.Start(ctx, req.UserId, conversationId)
	if err != nil {
		return nil, err
	}
	return toQuizResponse(session), nil
}

func (s *quizService) Show(ctx context.Context, userId string, conversationId string) (*dto.QuizResponse, error) {
	session, err := s.owned(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	return toQuizResponse(session), nil
}

func (s *quizService) Next(ctx context.Context, userId string, conversationId string) (*dto.QuizResponse, error) {
	if _, err := s.owned(ctx, userId, conversationId); err != nil {
		return nil, err
	}
	session, err := s.engine.NextQuestion(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	return toQuizResponse(session), nil
}

func (s *quizService) Answer(ctx context.Context, userId string, conversationId string, req *dto.AnswerQuizRequest) (*dto.AnswerQuizResponse, error) {
	if _, err := s.owned(ctx, userId, conversationId); err != nil {
		return nil, err
	}
	grade, session, err := s.engine.Answer(ctx, conversationId, req.Answer)
	if err != nil {
		return nil, err
	}
	return &dto.AnswerQuizResponse{
		Correct:  grade.Correct,
		Feedback: grade.Feedback,
		Quiz:     *toQuizResponse(session),
	}, nil
}

// owned hides other users' quizzes. An empty userId skips the check.
func (s *quizService) owned(ctx context.Context, userId string, conversationId string) (*entity.QuizSession, error) {
	session, err := s.engine.Get(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if userId != "" && session.UserId != userId {
		return nil, fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrQuizNotFound)
	}
	return session, nil
}

func toQuizResponse(q *entity.QuizSession) *dto.QuizResponse {
	return &dto.QuizResponse{
		ConversationId:  q.ConversationId,
		State:           string(q.State),
		Total:           q.Total,
		QuestionsAsked:  q.QuestionsAsked,
		Score:           q.Score,
		CurrentQuestion: q.CurrentQuestion,
		LastFeedback:    q.LastFeedback,
		Finished:        q.Finished,
	}
}
