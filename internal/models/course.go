package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `json:"id"`
	CreatedBy   uuid.UUID `json:"created_by"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Level       string    `json:"level"` // "beginner" | "intermediate" | "advanced"
	LessonCount int       `json:"lesson_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Lesson struct {
	ID            uuid.UUID       `json:"id"`
	CourseID      uuid.UUID       `json:"course_id"`
	Position      int             `json:"position"`
	Title         string          `json:"title"`
	GrammarFocus  string          `json:"grammar_focus"`
	Content       string          `json:"content"`
	Vocabulary    []string        `json:"vocabulary"`
	ExercisesJSON json.RawMessage `json:"exercises"`
	XPReward      int             `json:"xp_reward"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Exercise struct {
	Type         string   `json:"type"` // "multiple_choice" | "fill_blank" | "speaking"
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex int      `json:"correct_index"`
	Answer       string   `json:"answer,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Level       string `json:"level"`
}

type CreateLessonRequest struct {
	Title        string     `json:"title"`
	GrammarFocus string     `json:"grammar_focus"`
	Content      string     `json:"content"`
	Vocabulary   []string   `json:"vocabulary"`
	Exercises    []Exercise `json:"exercises"`
}

type GenerateLessonRequest struct {
	Topic        string `json:"topic"`
	GrammarFocus string `json:"grammar_focus"`
	Level        string `json:"level"`
}

type CompleteLessonRequest struct {
	Score int `json:"score"`
}
