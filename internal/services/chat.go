package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

const (
	maxMessageLength   = 4000
	defaultHistoryPage = 50
	maxHistoryPage     = 200
)

type chatStore interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom, directKey *string) error
	GetDirectRoom(ctx context.Context, directKey string) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*models.ChatRoom, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	InsertMessage(ctx context.Context, msg *models.ChatMessage) (bool, error)
	ListMessagesAfter(ctx context.Context, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error)
}

// ChatService stores messages with a per-room sequence and publishes each
// new message as a diff, so subscribers never need to re-fetch the room.
type ChatService struct {
	store chatStore
	pub   Publisher
	log   *logger.Logger
}

func NewChatService(store chatStore, pub Publisher, log *logger.Logger) *ChatService {
	return &ChatService{store: store, pub: pub, log: log.With("service", "ChatService")}
}

// DirectKey identifies the direct room of a user pair regardless of order.
func DirectKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

func (s *ChatService) CreateGroup(ctx context.Context, creatorID uuid.UUID, req models.CreateRoomRequest) (*models.ChatRoom, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "Name is required"}}
	}

	seen := map[uuid.UUID]bool{creatorID: true}
	members := []uuid.UUID{creatorID}
	for _, id := range req.MemberIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}

	room := &models.ChatRoom{Kind: models.RoomKindGroup, Name: name, CreatedBy: creatorID, MemberIDs: members}
	if err := s.store.CreateRoom(ctx, room, nil); err != nil {
		return nil, err
	}
	return room, nil
}

// OpenDirect returns the pair's direct room, creating it on first use.
func (s *ChatService) OpenDirect(ctx context.Context, userID, otherID uuid.UUID) (*models.ChatRoom, error) {
	if otherID == uuid.Nil || otherID == userID {
		return nil, &ValidationError{Fields: map[string]string{"user_id": "Choose another user"}}
	}

	key := DirectKey(userID, otherID)
	room, err := s.store.GetDirectRoom(ctx, key)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	room = &models.ChatRoom{Kind: models.RoomKindDirect, CreatedBy: userID, MemberIDs: []uuid.UUID{userID, otherID}}
	if err := s.store.CreateRoom(ctx, room, &key); err != nil {
		// Lost a race with the other user; their room wins.
		existing, getErr := s.store.GetDirectRoom(ctx, key)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return room, nil
}

func (s *ChatService) ListRooms(ctx context.Context, userID uuid.UUID) ([]*models.ChatRoom, error) {
	return s.store.ListRoomsForUser(ctx, userID)
}

func (s *ChatService) requireMember(ctx context.Context, roomID, userID uuid.UUID) error {
	ok, err := s.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Message: "Room not found"}
	}
	return nil
}

// Send stores a message. Resending the same client_id is idempotent: the
// stored message comes back and nothing is published again.
func (s *ChatService) Send(ctx context.Context, userID, roomID uuid.UUID, req models.SendMessageRequest) (*models.ChatMessage, error) {
	body := strings.TrimSpace(req.Body)
	fields := map[string]string{}
	if body == "" {
		fields["body"] = "Message cannot be empty"
	} else if len(body) > maxMessageLength {
		fields["body"] = "Message is too long"
	}
	if strings.TrimSpace(req.ClientID) == "" {
		fields["client_id"] = "client_id is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{RoomID: roomID, SenderID: userID, ClientID: req.ClientID, Body: body}
	created, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	if created {
		event := models.WSMessage{Type: EventMessageCreated, Payload: msg}
		if err := s.pub.Publish(ctx, RoomChannel(roomID), event); err != nil {
			s.log.Warn("message publish failed", "room_id", roomID, "seq", msg.Seq, "error", err)
		}
	}
	return msg, nil
}

// History pages through messages with seq > afterSeq.
func (s *ChatService) History(ctx context.Context, userID, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.MessagesAfter(ctx, roomID, afterSeq, limit)
}

// MessagesAfter skips the membership check; callers must have done it.
func (s *ChatService) MessagesAfter(ctx context.Context, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryPage
	}
	if limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	return s.store.ListMessagesAfter(ctx, roomID, afterSeq, limit)
}

// IsMember is exposed for the realtime hub's join check.
func (s *ChatService) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return s.store.IsMember(ctx, roomID, userID)
}
