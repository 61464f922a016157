package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lingua-backend/internal/chat"
	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

// Client → server message types on /ws.
const (
	MsgJoinRoom        = "join_room"
	MsgLeaveRoom       = "leave_room"
	MsgWatchPresence   = "watch_presence"
	MsgUnwatchPresence = "unwatch_presence"
	MsgVisibility      = "visibility"
)

// Server → client types that are not bus events.
const (
	MsgRoomJoined = "room_joined"
	MsgError      = "error"
)

type channelSet interface {
	Messages() <-chan services.BusMessage
	Add(ctx context.Context, channels ...string) error
	Remove(ctx context.Context, channels ...string) error
	Close() error
}

type eventOpener interface {
	Open(ctx context.Context, channels ...string) (*services.Subscription, error)
}

type roomReader interface {
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	MessagesAfter(ctx context.Context, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error)
}

type presenceTracker interface {
	CheckOnlineStatus(ctx context.Context, userID, groupID uuid.UUID) models.OnlineStatus
	Subscribe(ctx context.Context, groupID, userID uuid.UUID, fn func(models.OnlineStatus)) error
	NewHeartbeater(viewerID, userID, groupID uuid.UUID) *services.Heartbeater
}

type heartbeat interface {
	Start(ctx context.Context)
	SetVisible(visible bool)
	Stop()
}

// Hub serves /ws: per-user job and notification events, chat rooms the
// client joins, and presence of users the client watches.
type Hub struct {
	auth     tokenParser
	rooms    roomReader
	presence presenceTracker
	log      *logger.Logger

	open         func(ctx context.Context, channels ...string) (channelSet, error)
	newHeartbeat func(viewerID, userID, groupID uuid.UUID) heartbeat

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(auth tokenParser, bus eventOpener, rooms roomReader, presence presenceTracker, log *logger.Logger) *Hub {
	h := &Hub{
		auth:     auth,
		rooms:    rooms,
		presence: presence,
		log:      log.With("component", "ws_hub"),
		clients:  make(map[*client]struct{}),
	}
	h.open = func(ctx context.Context, channels ...string) (channelSet, error) {
		return bus.Open(ctx, channels...)
	}
	h.newHeartbeat = func(viewerID, userID, groupID uuid.UUID) heartbeat {
		// A nil *Heartbeater must not become a non-nil interface.
		if hb := presence.NewHeartbeater(viewerID, userID, groupID); hb != nil {
			return hb
		}
		return nil
	}
	return h
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(h.auth, w, r)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.open(ctx, services.UserChannel(userID))
	if err != nil {
		h.log.Error("event subscription failed", "user_id", userID, "error", err)
		cancel()
		ws.Close()
		return
	}

	c := &client{
		hub:     h,
		userID:  userID,
		conn:    newConn(ws),
		sub:     sub,
		ctx:     ctx,
		cancel:  cancel,
		rooms:   make(map[uuid.UUID]*roomFeed),
		watches: make(map[watchKey]context.CancelFunc),
		beats:   make(map[uuid.UUID]heartbeat),
	}
	h.register(c)

	go c.forward()
	go func() {
		defer h.unregister(c)
		c.readLoop()
	}()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("websocket connected", "user_id", c.userID, "connections", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	h.log.Debug("websocket disconnected", "user_id", c.userID)
}

// Shutdown closes every connection; heartbeaters write offline first.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

type watchKey struct {
	groupID uuid.UUID
	userID  uuid.UUID
}

type client struct {
	hub    *Hub
	userID uuid.UUID
	conn   *conn
	sub    channelSet
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	rooms   map[uuid.UUID]*roomFeed
	watches map[watchKey]context.CancelFunc
	beats   map[uuid.UUID]heartbeat
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	RoomID   uuid.UUID `json:"room_id"`
	AfterSeq int64     `json:"after_seq"`
}

type watchPayload struct {
	GroupID uuid.UUID `json:"group_id"`
	UserID  uuid.UUID `json:"user_id"`
}

type visibilityPayload struct {
	Visible bool `json:"visible"`
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("Malformed message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *client) dispatch(msg inbound) {
	switch msg.Type {
	case MsgJoinRoom:
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.RoomID == uuid.Nil {
			c.sendError("room_id is required")
			return
		}
		c.joinRoom(p)
	case MsgLeaveRoom:
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		c.leaveRoom(p.RoomID)
	case MsgWatchPresence:
		var p watchPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.GroupID == uuid.Nil || p.UserID == uuid.Nil {
			c.sendError("group_id and user_id are required")
			return
		}
		c.watchPresence(watchKey{groupID: p.GroupID, userID: p.UserID})
	case MsgUnwatchPresence:
		var p watchPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		c.unwatchPresence(watchKey{groupID: p.GroupID, userID: p.UserID})
	case MsgVisibility:
		var p visibilityPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		c.setVisible(p.Visible)
	default:
		c.sendError("Unknown message type")
	}
}

func (c *client) joinRoom(p joinPayload) {
	ok, err := c.hub.rooms.IsMember(c.ctx, p.RoomID, c.userID)
	if err != nil {
		c.hub.log.Error("room membership check failed", "room_id", p.RoomID, "error", err)
		c.sendError("Could not join room")
		return
	}
	if !ok {
		c.sendError("Room not found")
		return
	}

	c.mu.Lock()
	feed, exists := c.rooms[p.RoomID]
	if !exists {
		roomID := p.RoomID
		feed = newRoomFeed(chat.NewTimelineFrom(roomID, p.AfterSeq), func(ctx context.Context, afterSeq int64, limit int) ([]models.ChatMessage, error) {
			return c.hub.rooms.MessagesAfter(ctx, roomID, afterSeq, limit)
		})
		c.rooms[p.RoomID] = feed
	}
	c.mu.Unlock()

	// Subscribe before the catch-up read so nothing falls between them.
	if !exists {
		if err := c.sub.Add(c.ctx, services.RoomChannel(p.RoomID)); err != nil {
			c.hub.log.Error("room subscribe failed", "room_id", p.RoomID, "error", err)
			c.mu.Lock()
			delete(c.rooms, p.RoomID)
			c.mu.Unlock()
			c.sendError("Could not join room")
			return
		}
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()
	missed, err := feed.catchUp(c.ctx)
	if err != nil {
		c.hub.log.Warn("room catch-up failed", "room_id", p.RoomID, "error", err)
	}
	c.sendMessages(missed)
	c.send(models.WSMessage{Type: MsgRoomJoined, Payload: map[string]interface{}{
		"room_id":  p.RoomID,
		"last_seq": feed.timeline.LastSeq(),
	}})
}

func (c *client) leaveRoom(roomID uuid.UUID) {
	c.mu.Lock()
	_, ok := c.rooms[roomID]
	delete(c.rooms, roomID)
	c.mu.Unlock()
	if ok {
		if err := c.sub.Remove(c.ctx, services.RoomChannel(roomID)); err != nil {
			c.hub.log.Warn("room unsubscribe failed", "room_id", roomID, "error", err)
		}
	}
}

func (c *client) watchPresence(key watchKey) {
	c.mu.Lock()
	if _, ok := c.watches[key]; ok {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.watches[key] = cancel
	c.mu.Unlock()

	// Subscribe before reading the snapshot so no change falls between them.
	err := c.hub.presence.Subscribe(ctx, key.groupID, key.userID, func(status models.OnlineStatus) {
		c.send(models.WSMessage{Type: services.EventPresenceChanged, Payload: status})
	})
	if err != nil {
		// Live updates are lost; the snapshot below still stands.
		c.hub.log.Warn("presence subscribe failed", "group_id", key.groupID, "error", err)
	}

	c.send(models.WSMessage{
		Type:    services.EventPresenceChanged,
		Payload: c.hub.presence.CheckOnlineStatus(ctx, key.userID, key.groupID),
	})

	hb := c.hub.newHeartbeat(c.userID, key.userID, key.groupID)
	if hb == nil {
		return
	}
	c.mu.Lock()
	if _, running := c.beats[key.groupID]; running {
		c.mu.Unlock()
		return
	}
	c.beats[key.groupID] = hb
	c.mu.Unlock()
	hb.Start(c.ctx)
}

func (c *client) unwatchPresence(key watchKey) {
	c.mu.Lock()
	cancel, ok := c.watches[key]
	delete(c.watches, key)
	var hb heartbeat
	if key.userID == c.userID {
		hb = c.beats[key.groupID]
		delete(c.beats, key.groupID)
	}
	c.mu.Unlock()

	if ok {
		cancel()
	}
	if hb != nil {
		hb.Stop()
	}
}

func (c *client) setVisible(visible bool) {
	c.mu.Lock()
	beats := make([]heartbeat, 0, len(c.beats))
	for _, hb := range c.beats {
		beats = append(beats, hb)
	}
	c.mu.Unlock()

	for _, hb := range beats {
		hb.SetVisible(visible)
	}
}

// forward copies bus messages to the socket. Room events go through the
// room's feed; everything else is passed through unchanged.
func (c *client) forward() {
	for m := range c.sub.Messages() {
		if strings.HasPrefix(m.Channel, "room_updates:") {
			c.forwardRoom(m)
			continue
		}
		if err := c.conn.writeRaw(m.Payload); err != nil {
			return
		}
	}
}

func (c *client) forwardRoom(m services.BusMessage) {
	var env struct {
		Type    string             `json:"type"`
		Payload models.ChatMessage `json:"payload"`
	}
	if err := json.Unmarshal(m.Payload, &env); err != nil || env.Type != services.EventMessageCreated {
		return
	}

	c.mu.Lock()
	feed, ok := c.rooms[env.Payload.RoomID]
	c.mu.Unlock()
	if !ok {
		return
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()
	msgs, err := feed.deliver(c.ctx, env.Payload)
	if err != nil {
		c.hub.log.Warn("room catch-up failed", "room_id", env.Payload.RoomID, "error", err)
	}
	c.sendMessages(msgs)
}

func (c *client) sendMessages(msgs []models.ChatMessage) {
	for _, m := range msgs {
		c.send(models.WSMessage{Type: services.EventMessageCreated, Payload: m})
	}
}

func (c *client) send(msg models.WSMessage) {
	if err := c.conn.writeJSON(msg); err != nil {
		c.hub.log.Debug("websocket write failed", "user_id", c.userID, "error", err)
	}
}

func (c *client) sendError(message string) {
	c.send(models.WSMessage{Type: MsgError, Payload: map[string]string{"message": message}})
}

// close stops heartbeats (writing offline), drops subscriptions and closes
// the socket.
func (c *client) close() {
	c.mu.Lock()
	beats := make([]heartbeat, 0, len(c.beats))
	for _, hb := range c.beats {
		beats = append(beats, hb)
	}
	c.beats = map[uuid.UUID]heartbeat{}
	c.mu.Unlock()

	for _, hb := range beats {
		hb.Stop()
	}
	c.cancel()
	_ = c.sub.Close()
	_ = c.conn.close()
}
