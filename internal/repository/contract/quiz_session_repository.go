package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
)

type QuizSessionRepository interface {
	// Get returns tutorerr.ErrQuizNotFound when the conversation has no quiz.
	Get(ctx context.Context, conversationId string) (*entity.QuizSession, error)
	// Save writes the session if its Version matches the stored one (0 for a
	// new session, which may only replace a finished one) and bumps Version.
	// A mismatch returns tutorerr.ErrQuizConflict.
	Save(ctx context.Context, session *entity.QuizSession) error
	// Delete removes the conversation's quiz, if any.
	Delete(ctx context.Context, conversationId string) error
}
