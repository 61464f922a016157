package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceRecord is the stored row, one per (user, group).
type PresenceRecord struct {
	UserID     uuid.UUID `json:"user_id"`
	GroupID    uuid.UUID `json:"group_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// OnlineStatus is what viewers see: the stored flag gated by recency.
type OnlineStatus struct {
	UserID     uuid.UUID  `json:"user_id"`
	GroupID    uuid.UUID  `json:"group_id"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}
