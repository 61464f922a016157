package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type CourseRepo struct {
	pool *pgxpool.Pool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) Create(ctx context.Context, c *models.Course) error {
	c.ID = uuid.New()
	query := `INSERT INTO courses (id, created_by, title, description, level)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, c.ID, c.CreatedBy, c.Title, c.Description, c.Level).Scan(&c.CreatedAt)
}

func (r *CourseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c := &models.Course{}
	query := `SELECT c.id, c.created_by, c.title, c.description, c.level, c.created_at,
			(SELECT COUNT(*) FROM lessons l WHERE l.course_id = c.id)
		FROM courses c WHERE c.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.CreatedBy, &c.Title, &c.Description, &c.Level, &c.CreatedAt, &c.LessonCount,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CourseRepo) List(ctx context.Context, level string) ([]*models.Course, error) {
	query := `SELECT c.id, c.created_by, c.title, c.description, c.level, c.created_at,
			(SELECT COUNT(*) FROM lessons l WHERE l.course_id = c.id)
		FROM courses c`
	args := []interface{}{}
	if level != "" {
		query += " WHERE c.level = $1"
		args = append(args, level)
	}
	query += " ORDER BY c.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := make([]*models.Course, 0)
	for rows.Next() {
		c := &models.Course{}
		if err := rows.Scan(&c.ID, &c.CreatedBy, &c.Title, &c.Description, &c.Level, &c.CreatedAt, &c.LessonCount); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM courses WHERE id = $1", id)
	return err
}

// Lessons

// CreateLesson appends the lesson at the end of the course.
func (r *CourseRepo) CreateLesson(ctx context.Context, l *models.Lesson) error {
	l.ID = uuid.New()
	if len(l.ExercisesJSON) == 0 {
		l.ExercisesJSON = json.RawMessage("[]")
	}
	if l.Vocabulary == nil {
		l.Vocabulary = []string{}
	}
	if l.XPReward <= 0 {
		l.XPReward = 20
	}

	query := `INSERT INTO lessons (id, course_id, position, title, grammar_focus, content, vocabulary, exercises_json, xp_reward)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM lessons WHERE course_id = $2), $3, $4, $5, $6, $7, $8)
		RETURNING position, created_at`

	return r.pool.QueryRow(ctx, query,
		l.ID, l.CourseID, l.Title, l.GrammarFocus, l.Content, l.Vocabulary, l.ExercisesJSON, l.XPReward,
	).Scan(&l.Position, &l.CreatedAt)
}

func (r *CourseRepo) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	l := &models.Lesson{}
	query := `SELECT id, course_id, position, title, grammar_focus, content, vocabulary, exercises_json, xp_reward, created_at
		FROM lessons WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.CourseID, &l.Position, &l.Title, &l.GrammarFocus, &l.Content,
		&l.Vocabulary, &l.ExercisesJSON, &l.XPReward, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *CourseRepo) ListLessons(ctx context.Context, courseID uuid.UUID) ([]*models.Lesson, error) {
	query := `SELECT id, course_id, position, title, grammar_focus, content, vocabulary, exercises_json, xp_reward, created_at
		FROM lessons WHERE course_id = $1 ORDER BY position`

	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lessons := make([]*models.Lesson, 0)
	for rows.Next() {
		l := &models.Lesson{}
		err := rows.Scan(&l.ID, &l.CourseID, &l.Position, &l.Title, &l.GrammarFocus, &l.Content,
			&l.Vocabulary, &l.ExercisesJSON, &l.XPReward, &l.CreatedAt)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (r *CourseRepo) DeleteLesson(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM lessons WHERE id = $1", id)
	return err
}

// CompleteLesson records a completion and reports whether it is the first one
// for this user, so XP is only granted once.
func (r *CourseRepo) CompleteLesson(ctx context.Context, userID, lessonID uuid.UUID, score int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO lesson_completions (user_id, lesson_id, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, lesson_id) DO NOTHING
	`, userID, lessonID, score)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
