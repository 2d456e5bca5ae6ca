package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/tutorerr"
)

type QuizSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]entity.QuizSession
}

var _ contract.QuizSessionRepository = (*QuizSessionRepository)(nil)

func NewQuizSessionRepository() *QuizSessionRepository {
	return &QuizSessionRepository{sessions: make(map[string]entity.QuizSession)}
}

func (r *QuizSessionRepository) Get(ctx context.Context, conversationId string) (*entity.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conversationId]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrQuizNotFound)
	}
	return &s, nil
}

func (r *QuizSessionRepository) Save(ctx context.Context, session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored, exists := r.sessions[session.ConversationId]

	next := *session
	next.UpdatedAt = now
	switch {
	case session.Version == 0 && !exists:
		next.Version = 1
		next.CreatedAt = now
	case session.Version == 0 && stored.Finished:
		next.Version = stored.Version + 1
		next.CreatedAt = now
	case session.Version == 0:
		return fmt.Errorf("conversation %s already has an active quiz: %w", session.ConversationId, tutorerr.ErrQuizConflict)
	case !exists || stored.Version != session.Version:
		return fmt.Errorf("conversation %s version %d: %w", session.ConversationId, session.Version, tutorerr.ErrQuizConflict)
	default:
		next.Version = stored.Version + 1
		next.CreatedAt = stored.CreatedAt
	}

	r.sessions[session.ConversationId] = next
	*session = next
	return nil
}

func (r *QuizSessionRepository) Delete(ctx context.Context, conversationId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationId)
	return nil
}
