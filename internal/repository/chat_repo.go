package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

// CreateRoom inserts the room and its members in one transaction. directKey is
// only set for direct rooms and makes them unique per user pair.
func (r *ChatRepo) CreateRoom(ctx context.Context, room *models.ChatRoom, directKey *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	room.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (id, kind, name, direct_key, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, room.ID, room.Kind, room.Name, directKey, room.CreatedBy).Scan(&room.CreatedAt)
	if err != nil {
		return err
	}

	for _, memberID := range room.MemberIDs {
		if _, err := tx.Exec(ctx,
			"INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			room.ID, memberID,
		); err != nil {
			return fmt.Errorf("failed to add member %s: %w", memberID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetDirectRoom returns nil, nil when the pair has no room yet.
func (r *ChatRepo) GetDirectRoom(ctx context.Context, directKey string) (*models.ChatRoom, error) {
	room := &models.ChatRoom{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, name, last_seq, created_by, created_at
		FROM chat_rooms WHERE direct_key = $1
	`, directKey).Scan(&room.ID, &room.Kind, &room.Name, &room.LastSeq, &room.CreatedBy, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *ChatRepo) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*models.ChatRoom, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cr.id, cr.kind, cr.name, cr.last_seq, cr.created_by, cr.created_at
		FROM chat_rooms cr
		JOIN chat_room_members m ON m.room_id = cr.id
		WHERE m.user_id = $1
		ORDER BY cr.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]*models.ChatRoom, 0)
	for rows.Next() {
		room := &models.ChatRoom{}
		if err := rows.Scan(&room.ID, &room.Kind, &room.Name, &room.LastSeq, &room.CreatedBy, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *ChatRepo) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2)",
		roomID, userID,
	).Scan(&ok)
	return ok, err
}

// InsertMessage assigns the next per-room seq. Resending a client_id already
// stored returns the stored message and created=false.
func (r *ChatRepo) InsertMessage(ctx context.Context, msg *models.ChatMessage) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// Row lock on the room serializes seq assignment.
	var lastSeq int64
	if err := tx.QueryRow(ctx, "SELECT last_seq FROM chat_rooms WHERE id = $1 FOR UPDATE", msg.RoomID).Scan(&lastSeq); err != nil {
		return false, err
	}

	err = tx.QueryRow(ctx, `
		SELECT id, sender_id, seq, body, created_at
		FROM chat_messages WHERE room_id = $1 AND client_id = $2
	`, msg.RoomID, msg.ClientID).Scan(&msg.ID, &msg.SenderID, &msg.Seq, &msg.Body, &msg.CreatedAt)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	msg.ID = uuid.New()
	msg.Seq = lastSeq + 1
	if err := tx.QueryRow(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, client_id, seq, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, msg.ID, msg.RoomID, msg.SenderID, msg.ClientID, msg.Seq, msg.Body).Scan(&msg.CreatedAt); err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, "UPDATE chat_rooms SET last_seq = $1 WHERE id = $2", msg.Seq, msg.RoomID); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ListMessagesAfter returns up to limit messages with seq > afterSeq in order.
func (r *ChatRepo) ListMessagesAfter(ctx context.Context, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, sender_id, client_id, seq, body, created_at
		FROM chat_messages
		WHERE room_id = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3
	`, roomID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.ClientID, &m.Seq, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
