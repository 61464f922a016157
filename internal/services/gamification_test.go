package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelThresholds(t *testing.T) {
	cases := map[int]int{0: 1, 99: 1, 100: 2, 299: 2, 300: 3, 599: 3, 600: 4, 1000: 5}
	for xp, want := range cases {
		assert.Equal(t, want, Level(xp), "xp=%d", xp)
	}
	assert.Equal(t, 0, XPForLevel(1))
	assert.Equal(t, 100, XPForLevel(2))
	assert.Equal(t, 300, XPForLevel(3))
}

func TestTutorSessionXP(t *testing.T) {
	assert.Equal(t, 0, TutorSessionXP(0))
	assert.Equal(t, 10, TutorSessionXP(5))
	assert.Equal(t, 50, TutorSessionXP(100))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStreaks(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	cur, longest := Streaks(nil, today)
	assert.Equal(t, 0, cur)
	assert.Equal(t, 0, longest)

	days := []time.Time{day(2026, 3, 10), day(2026, 3, 9), day(2026, 3, 8), day(2026, 3, 5), day(2026, 3, 4), day(2026, 3, 3), day(2026, 3, 2)}
	cur, longest = Streaks(days, today)
	assert.Equal(t, 3, cur)
	assert.Equal(t, 4, longest)

	cur, _ = Streaks([]time.Time{day(2026, 3, 9), day(2026, 3, 8)}, today)
	assert.Equal(t, 2, cur)

	cur, longest = Streaks([]time.Time{day(2026, 3, 7), day(2026, 3, 6)}, today)
	assert.Equal(t, 0, cur)
	assert.Equal(t, 2, longest)
}

type progressStoreStub struct {
	xp   int
	days []time.Time
	adds []int
}

func (p *progressStoreStub) AddXP(ctx context.Context, userID uuid.UUID, source string, amount int) error {
	p.adds = append(p.adds, amount)
	p.xp += amount
	return nil
}

func (p *progressStoreStub) TotalXP(ctx context.Context, userID uuid.UUID) (int, error) {
	return p.xp, nil
}

func (p *progressStoreStub) ActivityDays(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	return p.days, nil
}

func TestGamificationProgress(t *testing.T) {
	store := &progressStoreStub{xp: 250, days: []time.Time{day(2026, 3, 10)}}
	svc := NewGamificationService(store)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, svc.AwardXP(context.Background(), uuid.New(), XPSourceLesson, 0))
	require.NoError(t, svc.AwardXP(context.Background(), uuid.New(), XPSourceLesson, 60))
	assert.Equal(t, []int{60}, store.adds)

	p, err := svc.Progress(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 310, p.XP)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 290, p.XPToNextLevel)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
}
