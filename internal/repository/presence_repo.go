package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type PresenceRepo struct {
	pool *pgxpool.Pool
}

func NewPresenceRepo(pool *pgxpool.Pool) *PresenceRepo {
	return &PresenceRepo{pool: pool}
}

// Get returns nil, nil when the user has never been seen in the group.
func (r *PresenceRepo) Get(ctx context.Context, userID, groupID uuid.UUID) (*models.PresenceRecord, error) {
	rec := &models.PresenceRecord{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, group_id, is_online, last_seen_at
		FROM presence
		WHERE user_id = $1 AND group_id = $2
	`, userID, groupID).Scan(&rec.UserID, &rec.GroupID, &rec.IsOnline, &rec.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Upsert writes the row keyed on (user_id, group_id); concurrent writers are
// last-write-wins.
func (r *PresenceRepo) Upsert(ctx context.Context, rec *models.PresenceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO presence (user_id, group_id, is_online, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, group_id) DO UPDATE
		SET is_online = EXCLUDED.is_online,
			last_seen_at = EXCLUDED.last_seen_at
	`, rec.UserID, rec.GroupID, rec.IsOnline, rec.LastSeenAt)
	return err
}

// ListByGroup returns every presence row for a room.
func (r *PresenceRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.PresenceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, group_id, is_online, last_seen_at
		FROM presence
		WHERE group_id = $1
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.PresenceRecord, 0)
	for rows.Next() {
		var rec models.PresenceRecord
		if err := rows.Scan(&rec.UserID, &rec.GroupID, &rec.IsOnline, &rec.LastSeenAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ExpireStale flips rows still flagged online whose last heartbeat is older
// than cutoff, returning the affected rows.
func (r *PresenceRepo) ExpireStale(ctx context.Context, cutoff time.Time) ([]models.PresenceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE presence
		SET is_online = FALSE
		WHERE is_online = TRUE
		  AND last_seen_at < $1
		RETURNING user_id, group_id, is_online, last_seen_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []models.PresenceRecord
	for rows.Next() {
		var rec models.PresenceRecord
		if err := rows.Scan(&rec.UserID, &rec.GroupID, &rec.IsOnline, &rec.LastSeenAt); err != nil {
			return nil, err
		}
		expired = append(expired, rec)
	}
	return expired, rows.Err()
}
