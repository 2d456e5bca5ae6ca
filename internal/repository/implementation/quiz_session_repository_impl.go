package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.QuizMapper
}

func NewQuizSessionRepository(db *gorm.DB) contract.QuizSessionRepository {
	return &QuizSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewQuizMapper(),
	}
}

func (r *QuizSessionRepositoryImpl) Get(ctx context.Context, conversationId string) (*entity.QuizSession, error) {
	var m model.QuizSession
	err := specification.ByConversationID{ConversationID: conversationId}.Apply(r.db.WithContext(ctx)).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrQuizNotFound)
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *QuizSessionRepositoryImpl) Save(ctx context.Context, session *entity.QuizSession) error {
	expected := session.Version
	m := r.mapper.ToModel(session)
	m.UpdatedAt = time.Now()

	if expected == 0 {
		return r.insert(ctx, m, session)
	}

	m.Version = expected + 1
	result := r.db.WithContext(ctx).Model(&model.QuizSession{}).
		Where("conversation_id = ? AND version = ?", m.ConversationId, expected).
		Updates(map[string]interface{}{
			"state":            m.State,
			"questions_asked":  m.QuestionsAsked,
			"score":            m.Score,
			"current_question": m.CurrentQuestion,
			"last_feedback":    m.LastFeedback,
			"finished":         m.Finished,
			"version":          m.Version,
			"updated_at":       m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s version %d: %w", m.ConversationId, expected, tutorerr.ErrQuizConflict)
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

// insert creates the session, replacing a finished one. The replacement
// continues the old version sequence so stale holders stay rejected.
func (r *QuizSessionRepositoryImpl) insert(ctx context.Context, m *model.QuizSession, session *entity.QuizSession) error {
	m.Version = 1
	m.CreatedAt = m.UpdatedAt

	result := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}},
			DoUpdates: append(clause.AssignmentColumns([]string{
				"user_id", "state", "total", "questions_asked", "score",
				"current_question", "last_feedback", "finished", "created_at", "updated_at",
			}), clause.Assignment{
				Column: clause.Column{Name: "version"},
				Value:  gorm.Expr("quiz_sessions.version + 1"),
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "quiz_sessions", Name: "finished"}, Value: true},
			}},
		},
		clause.Returning{Columns: []clause.Column{{Name: "version"}}},
	).Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s already has an active quiz: %w", m.ConversationId, tutorerr.ErrQuizConflict)
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *QuizSessionRepositoryImpl) Delete(ctx context.Context, conversationId string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Delete(&model.QuizSession{}).Error
}
