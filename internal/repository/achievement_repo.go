package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type AchievementRepo struct {
	pool *pgxpool.Pool
}

func NewAchievementRepo(pool *pgxpool.Pool) *AchievementRepo {
	return &AchievementRepo{pool: pool}
}

// EnsureProgress raises progress to at least n. Progress never decreases, so
// repeating the call is harmless.
func (r *AchievementRepo) EnsureProgress(ctx context.Context, userID uuid.UUID, key string, n int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_key, progress, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, achievement_key) DO UPDATE
		SET progress = GREATEST(user_achievements.progress, EXCLUDED.progress),
			updated_at = CASE
				WHEN EXCLUDED.progress > user_achievements.progress THEN NOW()
				ELSE user_achievements.updated_at
			END
	`, userID, key, n)
	return err
}

func (r *AchievementRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AchievementProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, achievement_key, progress, updated_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY achievement_key
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	progress := make([]models.AchievementProgress, 0)
	for rows.Next() {
		var p models.AchievementProgress
		if err := rows.Scan(&p.UserID, &p.AchievementKey, &p.Progress, &p.UpdatedAt); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}
