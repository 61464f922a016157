package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoomKindDirect = "direct"
	RoomKindGroup  = "group"
)

type ChatRoom struct {
	ID        uuid.UUID   `json:"id"`
	Kind      string      `json:"kind"`
	Name      string      `json:"name"`
	LastSeq   int64       `json:"last_seq"`
	CreatedBy uuid.UUID   `json:"created_by"`
	MemberIDs []uuid.UUID `json:"member_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	ClientID  string    `json:"client_id"`
	Seq       int64     `json:"seq"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	ClientID string `json:"client_id"`
	Body     string `json:"body"`
}

type CreateRoomRequest struct {
	Name      string      `json:"name"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

type DirectRoomRequest struct {
	UserID uuid.UUID `json:"user_id"`
}
