package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type SpeechSessionRepo struct {
	pool *pgxpool.Pool
}

func NewSpeechSessionRepo(pool *pgxpool.Pool) *SpeechSessionRepo {
	return &SpeechSessionRepo{pool: pool}
}

func (r *SpeechSessionRepo) Create(ctx context.Context, s *models.SpeechSession) error {
	s.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO speech_sessions (id, user_id, started_at, duration_seconds, messages_count, words_spoken)
		VALUES ($1, $2, $3, 0, 0, 0)
	`, s.ID, s.UserID, s.StartedAt)
	return err
}

// UpdateCounters leaves finalized rows and stale snapshots alone.
func (r *SpeechSessionRepo) UpdateCounters(ctx context.Context, id uuid.UUID, messages, words int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE speech_sessions
		SET messages_count = $1, words_spoken = $2
		WHERE id = $3 AND ended_at IS NULL AND messages_count <= $1
	`, messages, words, id)
	return err
}

// Finalize sets ended_at and totals. A session already finalized keeps its
// original end.
func (r *SpeechSessionRepo) Finalize(ctx context.Context, s *models.SpeechSession) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE speech_sessions
		SET ended_at = $1,
			duration_seconds = $2,
			messages_count = $3,
			words_spoken = $4
		WHERE id = $5
		  AND ended_at IS NULL
	`, s.EndedAt, s.DurationSeconds, s.MessagesCount, s.WordsSpoken, s.ID)
	return err
}

func (r *SpeechSessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SpeechSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_seconds, messages_count, words_spoken
		FROM speech_sessions
		WHERE user_id = $1
		ORDER BY started_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.SpeechSession
	for rows.Next() {
		var s models.SpeechSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds, &s.MessagesCount, &s.WordsSpoken); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
