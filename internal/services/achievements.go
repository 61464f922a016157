package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

// Achievement metrics.
const (
	MetricSessions = "sessions"
	MetricMinutes  = "minutes"
	MetricMessages = "messages"
	MetricWords    = "words"
)

type Achievement struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Metric      string `json:"metric"`
	Requirement int    `json:"requirement"`
}

var (
	sessionTiers = []Achievement{
		{Key: "first_conversation", Title: "First Conversation", Metric: MetricSessions, Requirement: 1},
		{Key: "conversation_regular", Title: "Regular Speaker", Metric: MetricSessions, Requirement: 10},
		{Key: "conversation_master", Title: "Conversation Master", Metric: MetricSessions, Requirement: 50},
	}
	minuteTiers = []Achievement{
		{Key: "speaking_10min", Title: "Ten Minutes Talking", Metric: MetricMinutes, Requirement: 10},
		{Key: "speaking_60min", Title: "One Hour Talking", Metric: MetricMinutes, Requirement: 60},
		{Key: "speaking_300min", Title: "Five Hours Talking", Metric: MetricMinutes, Requirement: 300},
	}
	messageTiers = []Achievement{
		{Key: "chatterbox", Title: "Chatterbox", Metric: MetricMessages, Requirement: 100},
	}
	wordTiers = []Achievement{
		{Key: "words_500", Title: "500 Words", Metric: MetricWords, Requirement: 500},
		{Key: "words_5000", Title: "5,000 Words", Metric: MetricWords, Requirement: 5000},
		{Key: "words_20000", Title: "20,000 Words", Metric: MetricWords, Requirement: 20000},
	}
)

// AchievementCatalog lists every speaking achievement in display order.
func AchievementCatalog() []Achievement {
	var all []Achievement
	for _, tiers := range [][]Achievement{sessionTiers, minuteTiers, messageTiers, wordTiers} {
		all = append(all, tiers...)
	}
	return all
}

// SessionTotals aggregates a user's whole speaking history.
type SessionTotals struct {
	Sessions int
	Minutes  int
	Messages int
	Words    int
}

func (t SessionTotals) metric(name string) int {
	switch name {
	case MetricSessions:
		return t.Sessions
	case MetricMinutes:
		return t.Minutes
	case MetricMessages:
		return t.Messages
	case MetricWords:
		return t.Words
	default:
		return 0
	}
}

// AggregateSessions sums counters; minutes are floor(total seconds / 60).
func AggregateSessions(sessions []models.SpeechSession) SessionTotals {
	var totals SessionTotals
	seconds := 0
	for _, s := range sessions {
		totals.Sessions++
		seconds += s.DurationSeconds
		totals.Messages += s.MessagesCount
		totals.Words += s.WordsSpoken
	}
	totals.Minutes = seconds / 60
	return totals
}

type sessionLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SpeechSession, error)
}

type achievementStore interface {
	EnsureProgress(ctx context.Context, userID uuid.UUID, key string, n int) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AchievementProgress, error)
}

// AchievementEvaluator re-derives achievement progress from full session
// history. Progress writes are "at least N", so repeated runs converge.
type AchievementEvaluator struct {
	sessions sessionLister
	store    achievementStore
	log      *logger.Logger
}

func NewAchievementEvaluator(sessions sessionLister, store achievementStore, log *logger.Logger) *AchievementEvaluator {
	return &AchievementEvaluator{sessions: sessions, store: store, log: log.With("service", "AchievementEvaluator")}
}

// Evaluate writes every tier the user has reached. A failed write does not
// stop the remaining tiers; all failures come back joined.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, userID uuid.UUID) error {
	history, err := e.sessions.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	totals := AggregateSessions(history)

	var errs []error
	for _, a := range AchievementCatalog() {
		if totals.metric(a.Metric) < a.Requirement {
			continue
		}
		if err := e.store.EnsureProgress(ctx, userID, a.Key, a.Requirement); err != nil {
			e.log.Warn("achievement write failed", "user_id", userID, "key", a.Key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Key, err))
		}
	}
	return errors.Join(errs...)
}

// AchievementStatus is one catalog entry with the user's progress.
type AchievementStatus struct {
	Achievement
	Progress int  `json:"progress"`
	Unlocked bool `json:"unlocked"`
}

func (e *AchievementEvaluator) List(ctx context.Context, userID uuid.UUID) ([]AchievementStatus, error) {
	rows, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress := make(map[string]int, len(rows))
	for _, r := range rows {
		progress[r.AchievementKey] = r.Progress
	}

	catalog := AchievementCatalog()
	out := make([]AchievementStatus, len(catalog))
	for i, a := range catalog {
		p := progress[a.Key]
		out[i] = AchievementStatus{Achievement: a, Progress: p, Unlocked: p >= a.Requirement}
	}
	return out, nil
}
