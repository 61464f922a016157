package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

type presenceStore interface {
	Get(ctx context.Context, userID, groupID uuid.UUID) (*models.PresenceRecord, error)
	Upsert(ctx context.Context, rec *models.PresenceRecord) error
	ExpireStale(ctx context.Context, cutoff time.Time) ([]models.PresenceRecord, error)
}

type subscriptionOpener interface {
	Open(ctx context.Context, channels ...string) (*Subscription, error)
}

// PresenceService tracks whether a user is viewing a chat group. Presence is
// best-effort: write failures are logged and never surface to the viewer.
type PresenceService struct {
	store    presenceStore
	pub      Publisher
	sub      subscriptionOpener
	log      *logger.Logger
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewPresenceService(store presenceStore, pub Publisher, sub subscriptionOpener, log *logger.Logger, onlineWindow, heartbeatInterval time.Duration) *PresenceService {
	return &PresenceService{
		store:    store,
		pub:      pub,
		sub:      sub,
		log:      log.With("service", "PresenceService"),
		window:   onlineWindow,
		interval: heartbeatInterval,
		now:      time.Now,
	}
}

// EffectivelyOnline trusts the stored flag only while last_seen_at is recent.
// A tab that died without writing offline ages out after window.
func EffectivelyOnline(rec *models.PresenceRecord, now time.Time, window time.Duration) bool {
	if rec == nil {
		return false
	}
	return rec.IsOnline && now.Sub(rec.LastSeenAt) < window
}

// CheckOnlineStatus never fails: a missing row or a read error reads as offline.
func (s *PresenceService) CheckOnlineStatus(ctx context.Context, userID, groupID uuid.UUID) models.OnlineStatus {
	status := models.OnlineStatus{UserID: userID, GroupID: groupID}

	rec, err := s.store.Get(ctx, userID, groupID)
	if err != nil {
		s.log.Warn("presence read failed", "user_id", userID, "group_id", groupID, "error", err)
		return status
	}
	if rec == nil {
		return status
	}

	seen := rec.LastSeenAt
	status.LastSeenAt = &seen
	status.IsOnline = EffectivelyOnline(rec, s.now(), s.window)
	return status
}

func (s *PresenceService) Heartbeat(ctx context.Context, userID, groupID uuid.UUID) error {
	return s.write(ctx, userID, groupID, true)
}

func (s *PresenceService) MarkOffline(ctx context.Context, userID, groupID uuid.UUID) error {
	return s.write(ctx, userID, groupID, false)
}

func (s *PresenceService) write(ctx context.Context, userID, groupID uuid.UUID, online bool) error {
	rec := &models.PresenceRecord{
		UserID:     userID,
		GroupID:    groupID,
		IsOnline:   online,
		LastSeenAt: s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		s.log.Warn("presence write failed", "user_id", userID, "group_id", groupID, "online", online, "error", err)
		return err
	}
	s.publish(ctx, *rec)
	return nil
}

func (s *PresenceService) publish(ctx context.Context, rec models.PresenceRecord) {
	if s.pub == nil {
		return
	}
	msg := models.WSMessage{Type: EventPresenceChanged, Payload: rec}
	if err := s.pub.Publish(ctx, GroupChannel(rec.GroupID), msg); err != nil {
		s.log.Warn("presence publish failed", "group_id", rec.GroupID, "error", err)
	}
}

// ExpireStale flips rows whose heartbeat stopped more than window ago and
// announces each one as offline.
func (s *PresenceService) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireStale(ctx, s.now().Add(-s.window))
	if err != nil {
		return 0, err
	}
	for _, rec := range expired {
		s.publish(ctx, rec)
	}
	return len(expired), nil
}

// Subscribe calls fn for every change to userID's presence in groupID until
// ctx is done. Status comes from the notification itself, no re-read.
func (s *PresenceService) Subscribe(ctx context.Context, groupID, userID uuid.UUID, fn func(models.OnlineStatus)) error {
	sub, err := s.sub.Open(ctx, GroupChannel(groupID))
	if err != nil {
		return err
	}
	go func() {
		defer sub.Close()
		for m := range sub.Messages() {
			if status, ok := decodePresenceEvent(m.Payload, userID); ok {
				fn(status)
			}
		}
	}()
	return nil
}

func decodePresenceEvent(raw []byte, userID uuid.UUID) (models.OnlineStatus, bool) {
	var env struct {
		Type    string                `json:"type"`
		Payload models.PresenceRecord `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.OnlineStatus{}, false
	}
	if env.Type != EventPresenceChanged || env.Payload.UserID != userID {
		return models.OnlineStatus{}, false
	}
	seen := env.Payload.LastSeenAt
	return models.OnlineStatus{
		UserID:     env.Payload.UserID,
		GroupID:    env.Payload.GroupID,
		IsOnline:   env.Payload.IsOnline,
		LastSeenAt: &seen,
	}, true
}

// Heartbeater keeps one viewer's presence row fresh while they look at a group.
type Heartbeater struct {
	svc     *PresenceService
	userID  uuid.UUID
	groupID uuid.UUID

	visCh    chan bool
	stopCh   chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewHeartbeater returns nil when the viewer is not the presence owner; only
// users publish their own presence.
func (s *PresenceService) NewHeartbeater(viewerID, userID, groupID uuid.UUID) *Heartbeater {
	if viewerID == uuid.Nil || viewerID != userID {
		return nil
	}
	return &Heartbeater{
		svc:     s,
		userID:  userID,
		groupID: groupID,
		visCh:   make(chan bool, 4),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start writes online right away, then on every interval while visible.
func (h *Heartbeater) Start(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	_ = h.svc.Heartbeat(ctx, h.userID, h.groupID)
	go h.loop(ctx)
}

func (h *Heartbeater) loop(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.svc.interval)
	defer ticker.Stop()
	visible := true

	for {
		select {
		case <-ticker.C:
			if visible {
				_ = h.svc.Heartbeat(ctx, h.userID, h.groupID)
			}
		case v := <-h.visCh:
			if v == visible {
				continue
			}
			visible = v
			if visible {
				_ = h.svc.Heartbeat(ctx, h.userID, h.groupID)
				ticker.Reset(h.svc.interval)
			} else {
				_ = h.svc.MarkOffline(ctx, h.userID, h.groupID)
			}
		case <-h.stopCh:
			h.teardown()
			return
		case <-ctx.Done():
			h.teardown()
			return
		}
	}
}

// teardown runs on a fresh context because the caller's is usually gone.
func (h *Heartbeater) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.svc.MarkOffline(ctx, h.userID, h.groupID)
}

// SetVisible reacts to the page being hidden or shown again.
func (h *Heartbeater) SetVisible(visible bool) {
	if !h.started.Load() {
		return
	}
	select {
	case h.visCh <- visible:
	case <-h.done:
	}
}

// Stop writes offline and waits for the loop to exit. Safe to call twice.
func (h *Heartbeater) Stop() {
	if !h.started.Load() {
		return
	}
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
}
