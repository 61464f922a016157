package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"lingua-backend/internal/logger"
)

// PresenceSweeper periodically expires presence rows whose owner stopped
// heart-beating, so group listings agree with CheckOnlineStatus.
type PresenceSweeper struct {
	presence  *PresenceService
	scheduler *gocron.Scheduler
	log       *logger.Logger
}

func NewPresenceSweeper(presence *PresenceService, log *logger.Logger) *PresenceSweeper {
	return &PresenceSweeper{
		presence:  presence,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log.With("service", "PresenceSweeper"),
	}
}

func (s *PresenceSweeper) Start() error {
	if _, err := s.scheduler.Every(1).Minute().Do(s.sweep); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info("presence sweeper started")
	return nil
}

func (s *PresenceSweeper) Stop() {
	s.scheduler.Stop()
}

func (s *PresenceSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.presence.ExpireStale(ctx)
	if err != nil {
		s.log.Warn("presence sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Debug("expired stale presence", "count", n)
	}
}
