package mapper

import (
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
)

type QuizMapper struct{}

func NewQuizMapper() *QuizMapper {
	return &QuizMapper{}
}

func (m *QuizMapper) ToEntity(q *model.QuizSession) *entity.QuizSession {
	if q == nil {
		return nil
	}
	return &entity.QuizSession{
		ConversationId:  q.ConversationId,
		UserId:          q.UserId,
		State:           entity.QuizState(q.State),
		Total:           q.Total,
		QuestionsAsked:  q.QuestionsAsked,
		Score:           q.Score,
		CurrentQuestion: q.CurrentQuestion,
		LastFeedback:    q.LastFeedback,
		Finished:        q.Finished,
		Version:         q.Version,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

func (m *QuizMapper) ToModel(q *entity.QuizSession) *model.QuizSession {
	if q == nil {
		return nil
	}
	return &model.QuizSession{
		ConversationId:  q.ConversationId,
		UserId:          q.UserId,
		State:           string(q.State),
		Total:           q.Total,
		QuestionsAsked:  q.QuestionsAsked,
		Score:           q.Score,
		CurrentQuestion: q.CurrentQuestion,
		LastFeedback:    q.LastFeedback,
		Finished:        q.Finished,
		Version:         q.Version,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}
