package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type storedConversation struct {
	conversation entity.Conversation
	turns        []entity.ConversationTurn
}

// ConversationLog keeps conversations in process memory. It backs the
// simulation CLI and tests; nothing survives a restart.
type ConversationLog struct {
	mu            sync.Mutex
	conversations *cache.Cache
}

var _ contract.ConversationLog = (*ConversationLog)(nil)

func NewConversationLog() *ConversationLog {
	return &ConversationLog{
		conversations: cache.New(cache.NoExpiration, 0),
	}
}

func notFound(conversationId string) error {
	return fmt.Errorf("conversation %s: %w", conversationId, tutorerr.ErrConversationNotFound)
}

// lookup must be called with mu held.
func (r *ConversationLog) lookup(conversationId string) (*storedConversation, error) {
	x, found := r.conversations.Get(conversationId)
	if !found {
		return nil, notFound(conversationId)
	}
	stored := x.(*storedConversation)
	if stored.conversation.Status == entity.ConversationDeleted {
		return nil, notFound(conversationId)
	}
	return stored, nil
}

func (r *ConversationLog) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversation.Id == "" {
		conversation.Id = uuid.NewString()
	}
	if _, found := r.conversations.Get(conversation.Id); found {
		return fmt.Errorf("conversation %s: %w", conversation.Id, tutorerr.ErrConversationExists)
	}
	conversation.Status = entity.ConversationActive
	conversation.NextTurn = 0
	conversation.CreatedAt = time.Now()

	r.conversations.Set(conversation.Id, &storedConversation{conversation: *conversation}, cache.NoExpiration)
	return nil
}

func (r *ConversationLog) Get(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(conversationId)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	stored.conversation.LastSeenAt = &now
	c := stored.conversation
	return &c, nil
}

func (r *ConversationLog) List(ctx context.Context, userId string, limit, offset int) ([]*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	var all []*entity.Conversation
	for _, item := range r.conversations.Items() {
		stored := item.Object.(*storedConversation)
		if stored.conversation.UserId != userId || stored.conversation.Status == entity.ConversationDeleted {
			continue
		}
		c := stored.conversation
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*entity.Conversation{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *ConversationLog) SetStatus(ctx context.Context, conversationId string, status entity.ConversationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(conversationId)
	if err != nil {
		return err
	}
	stored.conversation.Status = status
	return nil
}

func (r *ConversationLog) AllocateTurn(ctx context.Context, conversationId string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(conversationId)
	if err != nil {
		return 0, err
	}
	turn := stored.conversation.NextTurn
	stored.conversation.NextTurn++
	return turn, nil
}

func (r *ConversationLog) Append(ctx context.Context, turn *entity.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(turn.ConversationId)
	if err != nil {
		return err
	}
	for _, existing := range stored.turns {
		if existing.Turn == turn.Turn {
			return fmt.Errorf("conversation %s already has turn %d", turn.ConversationId, turn.Turn)
		}
	}
	if turn.MessageId == "" {
		turn.MessageId = entity.NewMessageId()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	stored.turns = append(stored.turns, *turn)
	sort.SliceStable(stored.turns, func(i, j int) bool { return stored.turns[i].Turn < stored.turns[j].Turn })
	at := turn.CreatedAt
	stored.conversation.LastMessageAt = &at
	return nil
}

func (r *ConversationLog) AppendExchange(ctx context.Context, conversationId string, user, system *entity.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(conversationId)
	if err != nil {
		return err
	}
	base := stored.conversation.NextTurn
	for _, existing := range stored.turns {
		if existing.Turn == base || existing.Turn == base+1 {
			return fmt.Errorf("conversation %s already has turn %d", conversationId, existing.Turn)
		}
	}

	now := time.Now()
	for i, turn := range []*entity.ConversationTurn{user, system} {
		turn.ConversationId = conversationId
		turn.Turn = base + int64(i)
		if turn.MessageId == "" {
			turn.MessageId = entity.NewMessageId()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		stored.turns = append(stored.turns, *turn)
	}
	sort.SliceStable(stored.turns, func(i, j int) bool { return stored.turns[i].Turn < stored.turns[j].Turn })
	stored.conversation.NextTurn = base + 2
	at := system.CreatedAt
	stored.conversation.LastMessageAt = &at
	return nil
}

func (r *ConversationLog) GetRecent(ctx context.Context, conversationId string, window int) ([]*entity.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(conversationId)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	stored.conversation.LastSeenAt = &now

	turns := stored.turns
	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	out := make([]*entity.ConversationTurn, len(turns))
	for i := range turns {
		t := turns[i]
		out[i] = &t
	}
	return out, nil
}

func (r *ConversationLog) History(ctx context.Context, conversationId string) ([]*entity.ConversationTurn, error) {
	return r.GetRecent(ctx, conversationId, 0)
}
