package services

import (
	"context"
	"encoding/json"
	"fmt"

	"lingua-backend/internal/lessons"
	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
)

type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type lessonWriter interface {
	CreateLesson(ctx context.Context, l *models.Lesson) error
}

// LessonGenerator turns a lesson-generation job into a stored lesson. Model
// failures and unusable output fall back to template content, so a job
// only fails when the lesson cannot be saved.
type LessonGenerator struct {
	gen     textGenerator
	lessons lessonWriter
	pub     Publisher
	log     *logger.Logger
}

func NewLessonGenerator(gen textGenerator, lessons lessonWriter, pub Publisher, log *logger.Logger) *LessonGenerator {
	return &LessonGenerator{gen: gen, lessons: lessons, pub: pub, log: log.With("service", "LessonGenerator")}
}

func (g *LessonGenerator) Generate(ctx context.Context, job *models.Job) (*models.Lesson, error) {
	var req models.GenerateLessonRequest
	if len(job.ConfigJSON) > 0 {
		if err := json.Unmarshal(job.ConfigJSON, &req); err != nil {
			return nil, fmt.Errorf("invalid job config: %w", err)
		}
	}
	focus := lessons.ParseGrammarFocus(req.GrammarFocus)

	g.status(ctx, job, 2, "Writing lesson")
	raw, err := g.gen.Generate(ctx, lessons.BuildPrompt(req.Topic, focus, req.Level))
	if err != nil {
		g.log.Warn("lesson generation failed, using template", "job_id", job.ID, "error", err)
	}
	generated, ok := lessons.ParseLesson(raw, req.Topic, focus, req.Level)
	if !ok && err == nil {
		g.log.Warn("model output unusable, using template", "job_id", job.ID)
	}

	g.status(ctx, job, 3, "Saving lesson")
	exercises, err := json.Marshal(generated.Exercises)
	if err != nil {
		return nil, fmt.Errorf("marshal exercises: %w", err)
	}
	lesson := &models.Lesson{
		CourseID:      job.ReferenceID,
		Title:         generated.Title,
		GrammarFocus:  string(focus),
		Content:       generated.Content,
		Vocabulary:    generated.Vocabulary,
		ExercisesJSON: exercises,
	}
	if err := g.lessons.CreateLesson(ctx, lesson); err != nil {
		return nil, fmt.Errorf("failed to save lesson: %w", err)
	}
	return lesson, nil
}

func (g *LessonGenerator) status(ctx context.Context, job *models.Job, step int, name string) {
	msg := models.WSMessage{
		Type:    EventStatusUpdate,
		Payload: models.StatusUpdate{JobID: job.ID, Step: step, StepName: name},
	}
	if err := g.pub.Publish(ctx, UserChannel(job.UserID), msg); err != nil {
		g.log.Debug("status update not published", "job_id", job.ID, "error", err)
	}
}
