package models

import (
	"time"

	"github.com/google/uuid"
)

type SpeechSession struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	MessagesCount   int        `json:"messages_count"`
	WordsSpoken     int        `json:"words_spoken"`
}

const (
	RoleUser  = "user"
	RoleTutor = "tutor"
)

// TranscriptEntry lives only for the duration of a tutor dialog.
type TranscriptEntry struct {
	Role      string    `json:"role"` // "user" or "tutor"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TutorRequest struct {
	Text                string             `json:"text"`
	ConversationHistory []ConversationTurn `json:"conversationHistory"`
}

type TutorResponse struct {
	Response string `json:"response"`
}

type UtteranceRequest struct {
	Text string `json:"text"`
}
