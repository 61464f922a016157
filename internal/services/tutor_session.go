package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

var (
	ErrNoUser          = errors.New("tutor session requires a user")
	ErrSessionNotFound = errors.New("tutor session not found")
)

// CountWords counts whitespace-separated non-empty tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// SessionDuration is (end - start) rounded to whole seconds, never negative.
func SessionDuration(start, end time.Time) int {
	d := end.Sub(start).Round(time.Second)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

type sessionStore interface {
	Create(ctx context.Context, s *models.SpeechSession) error
	UpdateCounters(ctx context.Context, id uuid.UUID, messages, words int) error
	Finalize(ctx context.Context, s *models.SpeechSession) error
}

type achievementEvaluator interface {
	Evaluate(ctx context.Context, userID uuid.UUID) error
}

type xpAwarder interface {
	AwardXP(ctx context.Context, userID uuid.UUID, source string, amount int) error
}

type openSession struct {
	session    models.SpeechSession
	transcript []models.TranscriptEntry
	lastActive time.Time
	closed     bool

	// writeMu orders counter writes for this session and holds Close back
	// until the last one lands.
	writeMu sync.Mutex
}

// SessionTracker owns the open speech-tutor sessions on this instance.
// Every persistence step is best-effort: failures are logged and the
// conversation carries on.
type SessionTracker struct {
	store        sessionStore
	achievements achievementEvaluator
	xp           xpAwarder
	log          *logger.Logger
	now          func() time.Time

	mu   sync.Mutex
	open map[uuid.UUID]*openSession
}

func NewSessionTracker(store sessionStore, achievements achievementEvaluator, xp xpAwarder, log *logger.Logger) *SessionTracker {
	return &SessionTracker{
		store:        store,
		achievements: achievements,
		xp:           xp,
		log:          log.With("service", "SessionTracker"),
		now:          time.Now,
		open:         make(map[uuid.UUID]*openSession),
	}
}

// Open starts a session for userID. The row write is attempted once; if it
// fails the session is not tracked and the error is returned.
func (t *SessionTracker) Open(ctx context.Context, userID uuid.UUID) (*models.SpeechSession, error) {
	if userID == uuid.Nil {
		return nil, ErrNoUser
	}

	s := &models.SpeechSession{UserID: userID, StartedAt: t.now().UTC()}
	if err := t.store.Create(ctx, s); err != nil {
		t.log.Error("failed to create speech session", "user_id", userID, "error", err)
		return nil, err
	}

	t.mu.Lock()
	t.open[s.ID] = &openSession{session: *s, lastActive: s.StartedAt}
	t.mu.Unlock()

	t.log.Debug("speech session opened", "session_id", s.ID, "user_id", userID)
	return s, nil
}

// Get returns a copy of an open session.
func (t *SessionTracker) Get(sessionID uuid.UUID) (models.SpeechSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.open[sessionID]
	if !ok {
		return models.SpeechSession{}, false
	}
	return sess.session, true
}

// RecordUtterance counts one completed user utterance.
func (t *SessionTracker) RecordUtterance(ctx context.Context, sessionID uuid.UUID, text string) (models.SpeechSession, error) {
	t.mu.Lock()
	sess, ok := t.open[sessionID]
	t.mu.Unlock()
	if !ok {
		return models.SpeechSession{}, ErrSessionNotFound
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	t.mu.Lock()
	if sess.closed {
		t.mu.Unlock()
		return models.SpeechSession{}, ErrSessionNotFound
	}
	now := t.now().UTC()
	sess.session.MessagesCount++
	sess.session.WordsSpoken += CountWords(text)
	sess.transcript = append(sess.transcript, models.TranscriptEntry{Role: models.RoleUser, Text: text, Timestamp: now})
	sess.lastActive = now
	snapshot := sess.session
	t.mu.Unlock()

	if err := t.store.UpdateCounters(ctx, sessionID, snapshot.MessagesCount, snapshot.WordsSpoken); err != nil {
		t.log.Warn("failed to update session counters", "session_id", sessionID, "error", err)
	}
	return snapshot, nil
}

// RecordReply keeps the tutor's side of the transcript. Nothing is persisted.
func (t *SessionTracker) RecordReply(sessionID uuid.UUID, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sess, ok := t.open[sessionID]; ok {
		now := t.now().UTC()
		sess.transcript = append(sess.transcript, models.TranscriptEntry{Role: models.RoleTutor, Text: text, Timestamp: now})
		sess.lastActive = now
	}
}

func (t *SessionTracker) Transcript(sessionID uuid.UUID) []models.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.open[sessionID]
	if !ok {
		return nil
	}
	out := make([]models.TranscriptEntry, len(sess.transcript))
	copy(out, sess.transcript)
	return out
}

// History converts the transcript into the turn list the AI tutor expects.
func (t *SessionTracker) History(sessionID uuid.UUID) []models.ConversationTurn {
	entries := t.Transcript(sessionID)
	turns := make([]models.ConversationTurn, len(entries))
	for i, e := range entries {
		turns[i] = models.ConversationTurn{Role: e.Role, Content: e.Text}
	}
	return turns
}

// Close finalizes the session, evaluates achievements and awards XP. Closing
// an unknown or already closed session is a no-op returning nil.
func (t *SessionTracker) Close(ctx context.Context, sessionID uuid.UUID) *models.SpeechSession {
	return t.finish(ctx, sessionID, time.Time{})
}

// CloseIdle finalizes every session with no activity for ttl and returns how
// many were closed. An idle session ends at its last activity.
func (t *SessionTracker) CloseIdle(ctx context.Context, ttl time.Duration) int {
	cutoff := t.now().Add(-ttl)

	t.mu.Lock()
	var idle []uuid.UUID
	for id, sess := range t.open {
		if sess.lastActive.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	t.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if t.finish(ctx, id, cutoff) != nil {
			closed++
		}
	}
	return closed
}

// finish closes sessionID. With a non-zero idleBefore the session is only
// closed if it is still idle, and ended_at is its last activity.
func (t *SessionTracker) finish(ctx context.Context, sessionID uuid.UUID, idleBefore time.Time) *models.SpeechSession {
	t.mu.Lock()
	sess, ok := t.open[sessionID]
	if ok && !idleBefore.IsZero() && !sess.lastActive.Before(idleBefore) {
		ok = false
	}
	if ok {
		delete(t.open, sessionID)
		sess.closed = true
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	s := sess.session
	end := t.now().UTC()
	if !idleBefore.IsZero() {
		end = sess.lastActive
	}
	s.EndedAt = &end
	s.DurationSeconds = SessionDuration(s.StartedAt, end)

	if err := t.store.Finalize(ctx, &s); err != nil {
		t.log.Error("failed to finalize speech session", "session_id", sessionID, "error", err)
	}
	if err := t.achievements.Evaluate(ctx, s.UserID); err != nil {
		t.log.Warn("achievement evaluation failed", "user_id", s.UserID, "error", err)
	}
	if t.xp != nil && s.MessagesCount > 0 {
		if err := t.xp.AwardXP(ctx, s.UserID, XPSourceTutor, TutorSessionXP(s.MessagesCount)); err != nil {
			t.log.Warn("failed to award tutor xp", "user_id", s.UserID, "error", err)
		}
	}

	t.log.Debug("speech session closed", "session_id", sessionID, "duration_seconds", s.DurationSeconds,
		"messages", s.MessagesCount, "words", s.WordsSpoken, "idle", !idleBefore.IsZero())
	return &s
}
