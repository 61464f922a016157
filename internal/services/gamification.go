package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/models"
)

// XP sources recorded in the ledger.
const (
	XPSourceLesson = "lesson"
	XPSourceTutor  = "tutor_session"

	xpPerTutorMessage = 2
	maxTutorXP        = 50
)

// XPForLevel is the total XP needed to reach level n: 100·n·(n-1)/2.
func XPForLevel(n int) int {
	if n <= 1 {
		return 0
	}
	return 50 * n * (n - 1)
}

// Level is the highest level whose threshold xp has reached. Level 1 is free.
func Level(xp int) int {
	n := 1
	for XPForLevel(n+1) <= xp {
		n++
	}
	return n
}

// TutorSessionXP rewards speaking: two XP per message, capped.
func TutorSessionXP(messages int) int {
	xp := messages * xpPerTutorMessage
	if xp > maxTutorXP {
		return maxTutorXP
	}
	return xp
}

// Streaks takes distinct UTC activity days sorted newest first. The current
// streak counts only if the last activity was today or yesterday.
func Streaks(days []time.Time, today time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}
	today = truncateDay(today)

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if truncateDay(days[i-1]).Sub(truncateDay(days[i])) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	gap := today.Sub(truncateDay(days[0]))
	if gap > 24*time.Hour || gap < 0 {
		return 0, longest
	}
	current = 1
	for i := 1; i < len(days); i++ {
		if truncateDay(days[i-1]).Sub(truncateDay(days[i])) != 24*time.Hour {
			break
		}
		current++
	}
	return current, longest
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type progressStore interface {
	AddXP(ctx context.Context, userID uuid.UUID, source string, amount int) error
	TotalXP(ctx context.Context, userID uuid.UUID) (int, error)
	ActivityDays(ctx context.Context, userID uuid.UUID) ([]time.Time, error)
}

type GamificationService struct {
	store progressStore
	now   func() time.Time
}

func NewGamificationService(store progressStore) *GamificationService {
	return &GamificationService{store: store, now: time.Now}
}

// AwardXP ignores non-positive amounts.
func (s *GamificationService) AwardXP(ctx context.Context, userID uuid.UUID, source string, amount int) error {
	if amount <= 0 {
		return nil
	}
	return s.store.AddXP(ctx, userID, source, amount)
}

func (s *GamificationService) Progress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	xp, err := s.store.TotalXP(ctx, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.store.ActivityDays(ctx, userID)
	if err != nil {
		return nil, err
	}

	level := Level(xp)
	current, longest := Streaks(days, s.now())
	return &models.UserProgress{
		XP:            xp,
		Level:         level,
		XPToNextLevel: XPForLevel(level+1) - xp,
		CurrentStreak: current,
		LongestStreak: longest,
	}, nil
}
