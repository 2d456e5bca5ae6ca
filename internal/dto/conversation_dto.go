package dto

import "time"

type CreateConversationRequest struct {
	// Id is optional; one is generated when empty.
	Id     string `json:"conversation_id"`
	UserId string `json:"user_id" validate:"required"`
}

type ConversationResponse struct {
	Id            string     `json:"conversation_id"`
	UserId        string     `json:"user_id"`
	Status        string     `json:"status"`
	Turns         int64      `json:"turns"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSeenAt    *time.Time `json:"last_seen_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

type TurnResponse struct {
	MessageId string    `json:"message_id"`
	Turn      int64     `json:"turn"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ListConversationsQuery struct {
	UserId string `query:"user_id" validate:"required"`
	Limit  int    `query:"limit" validate:"gte=0"`
	Offset int    `query:"offset" validate:"gte=0"`
}
