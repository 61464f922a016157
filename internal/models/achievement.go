package models

import (
	"time"

	"github.com/google/uuid"
)

type AchievementProgress struct {
	UserID         uuid.UUID `json:"user_id"`
	AchievementKey string    `json:"achievement_key"`
	Progress       int       `json:"progress"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserProgress is the gamification summary shown on the dashboard.
type UserProgress struct {
	XP            int `json:"xp"`
	Level         int `json:"level"`
	XPToNextLevel int `json:"xp_to_next_level"`
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}
