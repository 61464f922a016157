// Package chat keeps an ordered, gap-checked view of a room's messages.
// Realtime notifications are applied as diffs; a full re-fetch is only
// needed when a sequence gap shows that a notification was missed.
package chat

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/models"
)

var ErrGap = errors.New("chat: sequence gap, re-fetch required")

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

type Item struct {
	ClientID string             `json:"client_id"`
	Status   Status             `json:"status"`
	Message  models.ChatMessage `json:"message"`
}

// Timeline is one room's view. Confirmed messages are ordered by seq;
// pending and failed sends follow in the order they were added.
type Timeline struct {
	mu        sync.Mutex
	roomID    uuid.UUID
	lastSeq   int64
	confirmed []models.ChatMessage
	outbox    []Item
}

func NewTimeline(roomID uuid.UUID) *Timeline {
	return &Timeline{roomID: roomID}
}

// NewTimelineFrom starts a view whose history up to lastSeq is already
// known to the reader, so only later messages are tracked.
func NewTimelineFrom(roomID uuid.UUID, lastSeq int64) *Timeline {
	if lastSeq < 0 {
		lastSeq = 0
	}
	return &Timeline{roomID: roomID, lastSeq: lastSeq}
}

func (t *Timeline) LastSeq() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeq
}

// AddPending records a local send before the server has accepted it.
func (t *Timeline) AddPending(clientID string, senderID uuid.UUID, body string) Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	item := Item{
		ClientID: clientID,
		Status:   StatusPending,
		Message: models.ChatMessage{
			RoomID:    t.roomID,
			SenderID:  senderID,
			ClientID:  clientID,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		},
	}
	t.outbox = append(t.outbox, item)
	return item
}

// Fail marks a pending send as failed. It reports false if clientID is not
// pending.
func (t *Timeline) Fail(clientID string) bool {
	return t.setOutboxStatus(clientID, StatusPending, StatusFailed)
}

// Retry moves a failed send back to pending.
func (t *Timeline) Retry(clientID string) bool {
	return t.setOutboxStatus(clientID, StatusFailed, StatusPending)
}

// Discard drops a failed send the user gave up on.
func (t *Timeline) Discard(clientID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, it := range t.outbox {
		if it.ClientID == clientID && it.Status == StatusFailed {
			t.outbox = append(t.outbox[:i], t.outbox[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Timeline) setOutboxStatus(clientID string, from, to Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.outbox {
		if t.outbox[i].ClientID == clientID && t.outbox[i].Status == from {
			t.outbox[i].Status = to
			return true
		}
	}
	return false
}

// Apply adds one server-confirmed message. Messages at or below the last
// seq are duplicates and ignored. A seq beyond last+1 returns ErrGap and
// leaves the timeline untouched.
func (t *Timeline) Apply(msg models.ChatMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case msg.Seq <= t.lastSeq:
		return nil
	case msg.Seq > t.lastSeq+1:
		return ErrGap
	}
	t.confirmed = append(t.confirmed, msg)
	t.lastSeq = msg.Seq
	t.dropOutbox(msg.ClientID)
	return nil
}

// Confirm is the server's reply to our own send.
func (t *Timeline) Confirm(msg models.ChatMessage) error {
	return t.Apply(msg)
}

// Reset merges a re-fetched page that starts after the current last seq
// (or replaces everything when the page starts at seq 1).
func (t *Timeline) Reset(msgs []models.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sorted := make([]models.ChatMessage, len(msgs))
	copy(sorted, msgs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	if len(sorted) > 0 && sorted[0].Seq <= 1 {
		t.confirmed = nil
		t.lastSeq = 0
	}
	for _, m := range sorted {
		if m.Seq <= t.lastSeq {
			continue
		}
		t.confirmed = append(t.confirmed, m)
		t.lastSeq = m.Seq
		t.dropOutbox(m.ClientID)
	}
}

func (t *Timeline) dropOutbox(clientID string) {
	if clientID == "" {
		return
	}
	for i, it := range t.outbox {
		if it.ClientID == clientID {
			t.outbox = append(t.outbox[:i], t.outbox[i+1:]...)
			return
		}
	}
}

// Items returns confirmed messages followed by unconfirmed sends.
func (t *Timeline) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Item, 0, len(t.confirmed)+len(t.outbox))
	for _, m := range t.confirmed {
		out = append(out, Item{ClientID: m.ClientID, Status: StatusConfirmed, Message: m})
	}
	return append(out, t.outbox...)
}
