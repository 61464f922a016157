package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

// Event types carried on the bus and forwarded to WebSocket clients.
const (
	EventPresenceChanged = "presence_changed"
	EventMessageCreated  = "message_created"
	EventStatusUpdate    = "status_update"
	EventJobCompleted    = "completed"
	EventJobError        = "error"
)

func UserChannel(userID uuid.UUID) string  { return "user_updates:" + userID.String() }
func GroupChannel(groupID uuid.UUID) string { return "group_updates:" + groupID.String() }
func RoomChannel(roomID uuid.UUID) string   { return "room_updates:" + roomID.String() }

// Publisher is the write side of the bus. Services depend on this so tests
// can record events without Redis.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg models.WSMessage) error
}

// EventBus fans WSMessage envelopes out over Redis pub/sub.
type EventBus struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewEventBus(rdb *redis.Client, log *logger.Logger) *EventBus {
	return &EventBus{rdb: rdb, log: log.With("service", "EventBus")}
}

func (b *EventBus) Publish(ctx context.Context, channel string, msg models.WSMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// BusMessage is one raw envelope received from a channel.
type BusMessage struct {
	Channel string
	Payload []byte
}

// Subscription is a live set of channels. Channels can be added and removed
// while it is open.
type Subscription struct {
	ps  *redis.PubSub
	out chan BusMessage
}

// Open subscribes to the given channels and starts forwarding messages until
// ctx is done or Close is called.
func (b *EventBus) Open(ctx context.Context, channels ...string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &Subscription{ps: ps, out: make(chan BusMessage, 64)}
	go func() {
		defer close(sub.out)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				select {
				case sub.out <- BusMessage{Channel: m.Channel, Payload: []byte(m.Payload)}:
				case <-ctx.Done():
					_ = ps.Close()
					return
				}
			}
		}
	}()
	return sub, nil
}

func (s *Subscription) Messages() <-chan BusMessage { return s.out }

func (s *Subscription) Add(ctx context.Context, channels ...string) error {
	return s.ps.Subscribe(ctx, channels...)
}

func (s *Subscription) Remove(ctx context.Context, channels ...string) error {
	return s.ps.Unsubscribe(ctx, channels...)
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
