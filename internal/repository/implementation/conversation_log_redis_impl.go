package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	conv:{id}          hash   user_id, status, next_turn, created_at, last_seen_at, last_message_at
//	conv:{id}:turns    zset   turn record JSON scored by turn number
//	user:{id}:convs    zset   conversation ids scored by creation time
const redisKeyPrefix = "tutor:"

var createConversationScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'user_id', ARGV[1], 'status', 'active', 'next_turn', 0, 'created_at', ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

var allocateTurnScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 or redis.call('HGET', KEYS[1], 'status') == 'deleted' then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'next_turn', 1) - 1
`)

var appendTurnScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 or redis.call('HGET', KEYS[1], 'status') == 'deleted' then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[1], 'last_message_at', ARGV[3])
return 1
`)

// appendExchangeScript stamps both records with consecutive turn numbers
// and writes them only if neither number is already taken.
var appendExchangeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 or redis.call('HGET', KEYS[1], 'status') == 'deleted' then
	return -1
end
local base = tonumber(redis.call('HGET', KEYS[1], 'next_turn'))
if redis.call('ZCOUNT', KEYS[2], base, base + 1) > 0 then
	return -2
end
local user = cjson.decode(ARGV[1])
local system = cjson.decode(ARGV[2])
user['turn'] = base
system['turn'] = base + 1
redis.call('ZADD', KEYS[2], base, cjson.encode(user), base + 1, cjson.encode(system))
redis.call('HSET', KEYS[1], 'next_turn', base + 2, 'last_message_at', ARGV[3])
return base
`)

var getConversationScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 or redis.call('HGET', KEYS[1], 'status') == 'deleted' then
	return false
end
redis.call('HSET', KEYS[1], 'last_seen_at', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

var recentTurnsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 or redis.call('HGET', KEYS[1], 'status') == 'deleted' then
	return false
end
redis.call('HSET', KEYS[1], 'last_seen_at', ARGV[1])
local n = tonumber(ARGV[2])
if n <= 0 then
	return redis.call('ZRANGE', KEYS[2], 0, -1)
end
return redis.call('ZRANGE', KEYS[2], -n, -1)
`)

var setStatusScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 or redis.call('HGET', KEYS[1], 'status') == 'deleted' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
return 1
`)

type redisTurn struct {
	MessageId string `json:"message_id"`
	Turn      int64  `json:"turn"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

type ConversationLogRedisImpl struct {
	rdb *redis.Client
}

func NewConversationLogRedis(rdb *redis.Client) contract.ConversationLog {
	return &ConversationLogRedisImpl{rdb: rdb}
}

func conversationKey(id string) string { return redisKeyPrefix + "conv:" + id }
func turnsKey(id string) string        { return redisKeyPrefix + "conv:" + id + ":turns" }
func userConversationsKey(id string) string {
	return redisKeyPrefix + "user:" + id + ":convs"
}

func (r *ConversationLogRedisImpl) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.Id == "" {
		conversation.Id = uuid.NewString()
	}
	now := time.Now()
	created, err := createConversationScript.Run(ctx, r.rdb,
		[]string{conversationKey(conversation.Id), userConversationsKey(conversation.UserId)},
		conversation.UserId, now.UnixMilli(), conversation.Id,
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return fmt.Errorf("conversation %s: %w", conversation.Id, tutorerr.ErrConversationExists)
	}
	conversation.Status = entity.ConversationActive
	conversation.NextTurn = 0
	conversation.CreatedAt = time.UnixMilli(now.UnixMilli())
	return nil
}

func (r *ConversationLogRedisImpl) Get(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	pairs, err := getConversationScript.Run(ctx, r.rdb,
		[]string{conversationKey(conversationId)}, time.Now().UnixMilli(),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(conversationId)
	}
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return conversationFromHash(conversationId, fields), nil
}

func (r *ConversationLogRedisImpl) List(ctx context.Context, userId string, limit, offset int) ([]*entity.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := r.rdb.ZRevRange(ctx, userConversationsKey(userId), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, conversationKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []*entity.Conversation
	skipped := 0
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 || fields["status"] == string(entity.ConversationDeleted) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, conversationFromHash(ids[i], fields))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *ConversationLogRedisImpl) SetStatus(ctx context.Context, conversationId string, status entity.ConversationStatus) error {
	ok, err := setStatusScript.Run(ctx, r.rdb, []string{conversationKey(conversationId)}, string(status)).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return notFound(conversationId)
	}
	return nil
}

func (r *ConversationLogRedisImpl) AllocateTurn(ctx context.Context, conversationId string) (int64, error) {
	turn, err := allocateTurnScript.Run(ctx, r.rdb, []string{conversationKey(conversationId)}).Int64()
	if err != nil {
		return 0, err
	}
	if turn < 0 {
		return 0, notFound(conversationId)
	}
	return turn, nil
}

func (r *ConversationLogRedisImpl) Append(ctx context.Context, turn *entity.ConversationTurn) error {
	if turn.MessageId == "" {
		turn.MessageId = entity.NewMessageId()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	record, err := json.Marshal(redisTurn{
		MessageId: turn.MessageId,
		Turn:      turn.Turn,
		Role:      string(turn.Role),
		Text:      turn.Text,
		CreatedAt: turn.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}

	ok, err := appendTurnScript.Run(ctx, r.rdb,
		[]string{conversationKey(turn.ConversationId), turnsKey(turn.ConversationId)},
		turn.Turn, string(record), turn.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return notFound(turn.ConversationId)
	}
	return nil
}

func (r *ConversationLogRedisImpl) AppendExchange(ctx context.Context, conversationId string, user, system *entity.ConversationTurn) error {
	now := time.Now()
	turns := []*entity.ConversationTurn{user, system}
	records := make([]interface{}, 0, len(turns)+1)
	for _, turn := range turns {
		turn.ConversationId = conversationId
		if turn.MessageId == "" {
			turn.MessageId = entity.NewMessageId()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		record, err := json.Marshal(redisTurn{
			MessageId: turn.MessageId,
			Role:      string(turn.Role),
			Text:      turn.Text,
			CreatedAt: turn.CreatedAt.UnixMilli(),
		})
		if err != nil {
			return err
		}
		records = append(records, string(record))
	}
	records = append(records, system.CreatedAt.UnixMilli())

	base, err := appendExchangeScript.Run(ctx, r.rdb,
		[]string{conversationKey(conversationId), turnsKey(conversationId)}, records...,
	).Int64()
	if err != nil {
		return err
	}
	switch base {
	case -1:
		return notFound(conversationId)
	case -2:
		return fmt.Errorf("conversation %s: turns already taken", conversationId)
	}
	user.Turn, system.Turn = base, base+1
	return nil
}

func (r *ConversationLogRedisImpl) GetRecent(ctx context.Context, conversationId string, window int) ([]*entity.ConversationTurn, error) {
	records, err := recentTurnsScript.Run(ctx, r.rdb,
		[]string{conversationKey(conversationId), turnsKey(conversationId)},
		time.Now().UnixMilli(), window,
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(conversationId)
	}
	if err != nil {
		return nil, err
	}

	turns := make([]*entity.ConversationTurn, 0, len(records))
	for _, raw := range records {
		var rt redisTurn
		if err := json.Unmarshal([]byte(raw), &rt); err != nil {
			return nil, fmt.Errorf("decode turn of %s: %w", conversationId, err)
		}
		turns = append(turns, &entity.ConversationTurn{
			MessageId:      rt.MessageId,
			ConversationId: conversationId,
			Turn:           rt.Turn,
			Role:           entity.TurnRole(rt.Role),
			Text:           rt.Text,
			CreatedAt:      time.UnixMilli(rt.CreatedAt),
		})
	}
	return turns, nil
}

func (r *ConversationLogRedisImpl) History(ctx context.Context, conversationId string) ([]*entity.ConversationTurn, error) {
	return r.GetRecent(ctx, conversationId, 0)
}

func conversationFromHash(id string, fields map[string]string) *entity.Conversation {
	c := &entity.Conversation{
		Id:     id,
		UserId: fields["user_id"],
		Status: entity.ConversationStatus(fields["status"]),
	}
	c.NextTurn, _ = strconv.ParseInt(fields["next_turn"], 10, 64)
	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		c.CreatedAt = time.UnixMilli(ms)
	}
	c.LastSeenAt = millisField(fields, "last_seen_at")
	c.LastMessageAt = millisField(fields, "last_message_at")
	return c
}

func millisField(fields map[string]string, key string) *time.Time {
	ms, err := strconv.ParseInt(fields[key], 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}
