package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

func (r *ProgressRepo) AddXP(ctx context.Context, userID uuid.UUID, source string, amount int) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO xp_events (user_id, source, amount) VALUES ($1, $2, $3)",
		userID, source, amount,
	)
	return err
}

func (r *ProgressRepo) TotalXP(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0)::int FROM xp_events WHERE user_id = $1", userID,
	).Scan(&total)
	return total, err
}

// ActivityDays returns the distinct UTC dates on which the user earned XP,
// newest first.
func (r *ProgressRepo) ActivityDays(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT (created_at AT TIME ZONE 'UTC')::date AS d
		FROM xp_events
		WHERE user_id = $1
		ORDER BY d DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
