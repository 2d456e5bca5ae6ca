package implementation

import (
	"context"
	"fmt"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationLogImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationLog(db *gorm.DB) contract.ConversationLog {
	return &ConversationLogImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationLogImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func notFound(conversationId string) error {
	return fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrConversationNotFound)
}

func (r *ConversationLogImpl) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.Id == "" {
		conversation.Id = uuid.NewString()
	}
	m := r.mapper.ConversationToModel(conversation)
	m.NextTurn = 0

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", conversation.Id, tutorerr.ErrConversationExists)
	}
	*conversation = *r.mapper.ConversationToEntity(m)
	return nil
}

// Get touches last_seen_at and reads the row back in one statement.
func (r *ConversationLogImpl) Get(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	var models []*model.Conversation
	result := r.applySpecifications(r.db.WithContext(ctx).Model(&models).Clauses(clause.Returning{}),
		specification.FilterBy{Field: "id", Value: conversationId},
		specification.NotDeletedConversation{},
	).Update("last_seen_at", time.Now())
	if result.Error != nil {
		return nil, result.Error
	}
	if len(models) == 0 {
		return nil, notFound(conversationId)
	}
	return r.mapper.ConversationToEntity(models[0]), nil
}

func (r *ConversationLogImpl) List(ctx context.Context, userId string, limit, offset int) ([]*entity.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []*model.Conversation
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByUserID{UserID: userId},
		specification.NotDeletedConversation{},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Conversation, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ConversationToEntity(m)
	}
	return entities, nil
}

func (r *ConversationLogImpl) SetStatus(ctx context.Context, conversationId string, status entity.ConversationStatus) error {
	result := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Conversation{}),
		specification.FilterBy{Field: "id", Value: conversationId},
		specification.NotDeletedConversation{},
	).Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(conversationId)
	}
	return nil
}

// AllocateTurn increments the counter and reads the reserved value in one
// statement, so concurrent writers never observe the same turn.
func (r *ConversationLogImpl) AllocateTurn(ctx context.Context, conversationId string) (int64, error) {
	var turns []int64
	err := r.db.WithContext(ctx).Raw(
		"UPDATE conversations SET next_turn = next_turn + 1, updated_at = ? WHERE id = ? AND status <> ? RETURNING next_turn - 1",
		time.Now(), conversationId, string(entity.ConversationDeleted),
	).Scan(&turns).Error
	if err != nil {
		return 0, err
	}
	if len(turns) == 0 {
		return 0, notFound(conversationId)
	}
	return turns[0], nil
}

func (r *ConversationLogImpl) Append(ctx context.Context, turn *entity.ConversationTurn) error {
	if turn.MessageId == "" {
		turn.MessageId = entity.NewMessageId()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	m := r.mapper.TurnToModel(turn)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Conversation{}).
			Where("id = ?", turn.ConversationId).
			Where("status <> ?", string(entity.ConversationDeleted)).
			Update("last_message_at", turn.CreatedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return notFound(turn.ConversationId)
		}
		return tx.Create(m).Error
	})
}

// AppendExchange reserves two turns and inserts both rows in one
// transaction; a failed insert rolls the counter back with it.
func (r *ConversationLogImpl) AppendExchange(ctx context.Context, conversationId string, user, system *entity.ConversationTurn) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bases []int64
		err := tx.Raw(
			"UPDATE conversations SET next_turn = next_turn + 2, updated_at = ?, last_message_at = ? WHERE id = ? AND status <> ? RETURNING next_turn - 2",
			now, now, conversationId, string(entity.ConversationDeleted),
		).Scan(&bases).Error
		if err != nil {
			return err
		}
		if len(bases) == 0 {
			return notFound(conversationId)
		}

		turns := []*entity.ConversationTurn{user, system}
		models := make([]*model.ConversationTurn, len(turns))
		for i, turn := range turns {
			turn.ConversationId = conversationId
			turn.Turn = bases[0] + int64(i)
			if turn.MessageId == "" {
				turn.MessageId = entity.NewMessageId()
			}
			if turn.CreatedAt.IsZero() {
				turn.CreatedAt = now
			}
			models[i] = r.mapper.TurnToModel(turn)
		}
		return tx.Create(&models).Error
	})
}

func (r *ConversationLogImpl) GetRecent(ctx context.Context, conversationId string, window int) ([]*entity.ConversationTurn, error) {
	var models []*model.ConversationTurn

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Conversation{}).
			Where("id = ?", conversationId).
			Where("status <> ?", string(entity.ConversationDeleted)).
			Update("last_seen_at", time.Now())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return notFound(conversationId)
		}

		specs := []specification.Specification{
			specification.ByConversationID{ConversationID: conversationId},
			specification.OrderBy{Field: "turn", Desc: true},
		}
		if window > 0 {
			specs = append(specs, specification.Pagination{Limit: window})
		}
		return r.applySpecifications(tx, specs...).Find(&models).Error
	})
	if err != nil {
		return nil, err
	}

	// fetched newest first so the window keeps the latest turns
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return r.mapper.TurnsToEntities(models), nil
}

func (r *ConversationLogImpl) History(ctx context.Context, conversationId string) ([]*entity.ConversationTurn, error) {
	return r.GetRecent(ctx, conversationId, 0)
}
