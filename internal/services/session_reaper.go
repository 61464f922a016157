package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"lingua-backend/internal/logger"
)

// SessionReaper closes tutor sessions whose client went away without closing
// them, so their rows get ended_at and their achievements are evaluated.
type SessionReaper struct {
	sessions  *SessionTracker
	ttl       time.Duration
	scheduler *gocron.Scheduler
	log       *logger.Logger
}

func NewSessionReaper(sessions *SessionTracker, ttl time.Duration, log *logger.Logger) *SessionReaper {
	return &SessionReaper{
		sessions:  sessions,
		ttl:       ttl,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log.With("service", "SessionReaper"),
	}
}

func (r *SessionReaper) Start() error {
	if _, err := r.scheduler.Every(1).Minute().Do(r.reap); err != nil {
		return err
	}
	r.scheduler.StartAsync()
	r.log.Info("session reaper started", "idle_ttl", r.ttl.String())
	return nil
}

func (r *SessionReaper) Stop() {
	r.scheduler.Stop()
}

func (r *SessionReaper) reap() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n := r.sessions.CloseIdle(ctx, r.ttl); n > 0 {
		r.log.Info("closed idle tutor sessions", "count", n)
	}
}
