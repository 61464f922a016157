package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

type chatStoreStub struct {
	rooms     map[uuid.UUID]*models.ChatRoom
	direct    map[string]*models.ChatRoom
	members   map[uuid.UUID]map[uuid.UUID]bool
	messages  map[uuid.UUID][]models.ChatMessage
	createErr error
	lastLimit int
}

func newChatStoreStub() *chatStoreStub {
	return &chatStoreStub{
		rooms:    map[uuid.UUID]*models.ChatRoom{},
		direct:   map[string]*models.ChatRoom{},
		members:  map[uuid.UUID]map[uuid.UUID]bool{},
		messages: map[uuid.UUID][]models.ChatMessage{},
	}
}

func (s *chatStoreStub) CreateRoom(ctx context.Context, room *models.ChatRoom, directKey *string) error {
	if s.createErr != nil {
		return s.createErr
	}
	room.ID = uuid.New()
	s.rooms[room.ID] = room
	s.members[room.ID] = map[uuid.UUID]bool{}
	for _, m := range room.MemberIDs {
		s.members[room.ID][m] = true
	}
	if directKey != nil {
		s.direct[*directKey] = room
	}
	return nil
}

func (s *chatStoreStub) GetDirectRoom(ctx context.Context, key string) (*models.ChatRoom, error) {
	return s.direct[key], nil
}

func (s *chatStoreStub) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*models.ChatRoom, error) {
	var out []*models.ChatRoom
	for id, r := range s.rooms {
		if s.members[id][userID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *chatStoreStub) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return s.members[roomID][userID], nil
}

func (s *chatStoreStub) InsertMessage(ctx context.Context, msg *models.ChatMessage) (bool, error) {
	for _, m := range s.messages[msg.RoomID] {
		if m.ClientID == msg.ClientID {
			*msg = m
			return false, nil
		}
	}
	msg.ID = uuid.New()
	msg.Seq = int64(len(s.messages[msg.RoomID]) + 1)
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)
	return true, nil
}

func (s *chatStoreStub) ListMessagesAfter(ctx context.Context, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error) {
	s.lastLimit = limit
	var out []models.ChatMessage
	for _, m := range s.messages[roomID] {
		if m.Seq > afterSeq && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestDirectKeyOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, DirectKey(a, b), DirectKey(b, a))
}

func TestOpenDirectReusesRoom(t *testing.T) {
	store := newChatStoreStub()
	svc := NewChatService(store, &recordingPublisher{}, logger.NewNop())
	a, b := uuid.New(), uuid.New()

	first, err := svc.OpenDirect(context.Background(), a, b)
	require.NoError(t, err)
	second, err := svc.OpenDirect(context.Background(), b, a)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.RoomKindDirect, first.Kind)
	assert.Len(t, store.rooms, 1)
}

func TestOpenDirectRejectsSelf(t *testing.T) {
	svc := NewChatService(newChatStoreStub(), &recordingPublisher{}, logger.NewNop())
	a := uuid.New()

	_, err := svc.OpenDirect(context.Background(), a, a)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateGroupDedupsMembers(t *testing.T) {
	svc := NewChatService(newChatStoreStub(), &recordingPublisher{}, logger.NewNop())
	creator, other := uuid.New(), uuid.New()

	room, err := svc.CreateGroup(context.Background(), creator, models.CreateRoomRequest{
		Name: " Study group ", MemberIDs: []uuid.UUID{other, creator, other, uuid.Nil},
	})

	require.NoError(t, err)
	assert.Equal(t, "Study group", room.Name)
	assert.Equal(t, []uuid.UUID{creator, other}, room.MemberIDs)
}

func TestSendPublishesOnceAndIsIdempotent(t *testing.T) {
	store := newChatStoreStub()
	pub := &recordingPublisher{}
	svc := NewChatService(store, pub, logger.NewNop())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	room, err := svc.OpenDirect(ctx, a, b)
	require.NoError(t, err)

	m1, err := svc.Send(ctx, a, room.ID, models.SendMessageRequest{ClientID: "c1", Body: "Hello!"})
	require.NoError(t, err)
	again, err := svc.Send(ctx, a, room.ID, models.SendMessageRequest{ClientID: "c1", Body: "Hello!"})
	require.NoError(t, err)
	m2, err := svc.Send(ctx, b, room.ID, models.SendMessageRequest{ClientID: "c2", Body: "Hi"})
	require.NoError(t, err)

	assert.Equal(t, m1.ID, again.ID)
	assert.Equal(t, int64(1), m1.Seq)
	assert.Equal(t, int64(2), m2.Seq)

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, RoomChannel(room.ID), events[0].Channel)
	assert.Equal(t, EventMessageCreated, events[0].Msg.Type)
}

func TestSendValidationAndMembership(t *testing.T) {
	store := newChatStoreStub()
	svc := NewChatService(store, &recordingPublisher{}, logger.NewNop())
	ctx := context.Background()
	room, err := svc.OpenDirect(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = svc.Send(ctx, uuid.New(), room.ID, models.SendMessageRequest{Body: "  "})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "body")
	assert.Contains(t, vErr.Fields, "client_id")

	_, err = svc.Send(ctx, uuid.New(), room.ID, models.SendMessageRequest{ClientID: "x", Body: "hi"})
	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestSendPublishFailureStillReturnsMessage(t *testing.T) {
	store := newChatStoreStub()
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := NewChatService(store, pub, logger.NewNop())
	ctx := context.Background()
	a := uuid.New()
	room, err := svc.OpenDirect(ctx, a, uuid.New())
	require.NoError(t, err)

	msg, err := svc.Send(ctx, a, room.ID, models.SendMessageRequest{ClientID: "c1", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)
}

func TestHistoryClampsLimit(t *testing.T) {
	store := newChatStoreStub()
	svc := NewChatService(store, &recordingPublisher{}, logger.NewNop())
	ctx := context.Background()
	a := uuid.New()
	room, err := svc.OpenDirect(ctx, a, uuid.New())
	require.NoError(t, err)
	for _, c := range []string{"c1", "c2", "c3"} {
		_, err := svc.Send(ctx, a, room.ID, models.SendMessageRequest{ClientID: c, Body: c})
		require.NoError(t, err)
	}

	msgs, err := svc.History(ctx, a, room.ID, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, maxHistoryPage, store.lastLimit)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[0].Seq)

	_, err = svc.History(ctx, a, room.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultHistoryPage, store.lastLimit)
}
