package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lingua-backend/internal/lessons"
	"lingua-backend/internal/logger"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

const maxImportSize = 10 << 20

var validLevels = map[string]bool{"beginner": true, "intermediate": true, "advanced": true}

type courseStore interface {
	Create(ctx context.Context, c *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	List(ctx context.Context, level string) ([]*models.Course, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CreateLesson(ctx context.Context, l *models.Lesson) error
	GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	ListLessons(ctx context.Context, courseID uuid.UUID) ([]*models.Lesson, error)
	DeleteLesson(ctx context.Context, id uuid.UUID) error
	CompleteLesson(ctx context.Context, userID, lessonID uuid.UUID, score int) (bool, error)
}

type lessonImporter interface {
	Import(ctx context.Context, courseID uuid.UUID, r io.Reader) (*services.ImportResult, error)
}

type jobCreator interface {
	Create(ctx context.Context, j *models.Job) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type jobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type xpAwarder interface {
	AwardXP(ctx context.Context, userID uuid.UUID, source string, amount int) error
}

type CourseHandler struct {
	courses  courseStore
	importer lessonImporter
	jobs     jobCreator
	queue    jobQueue
	xp       xpAwarder
	log      *logger.Logger
}

func NewCourseHandler(courses courseStore, importer lessonImporter, jobs jobCreator, queue jobQueue, xp xpAwarder, log *logger.Logger) *CourseHandler {
	return &CourseHandler{
		courses:  courses,
		importer: importer,
		jobs:     jobs,
		queue:    queue,
		xp:       xp,
		log:      log.With("handler", "courses"),
	}
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.List(r.Context(), r.URL.Query().Get("level"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list courses", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := map[string]string{}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		fields["title"] = "Title is required"
	}
	level := strings.ToLower(strings.TrimSpace(req.Level))
	if level == "" {
		level = "beginner"
	} else if !validLevels[level] {
		fields["level"] = "Level must be beginner, intermediate or advanced"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	course := &models.Course{
		CreatedBy:   middleware.GetUserID(r.Context()),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Level:       level,
	}
	if err := h.courses.Create(r.Context(), course); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create course", r))
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "course ID")
	if !ok {
		return
	}
	course, ok := h.loadCourse(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	course, ok := h.ownedCourse(w, r)
	if !ok {
		return
	}
	if err := h.courses.Delete(r.Context(), course.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete course", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Course deleted"})
}

func (h *CourseHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "course ID")
	if !ok {
		return
	}
	if _, ok := h.loadCourse(w, r, id); !ok {
		return
	}
	list, err := h.courses.ListLessons(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list lessons", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lessons": list})
}

// CreateLesson fills anything the author left out from the template for the
// lesson's grammar focus.
func (h *CourseHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	course, ok := h.ownedCourse(w, r)
	if !ok {
		return
	}

	var req models.CreateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"title": "Title is required"}, r))
		return
	}

	focus := lessons.ParseGrammarFocus(req.GrammarFocus)
	template := lessons.FallbackLesson(title, focus, course.Level)

	content := strings.TrimSpace(req.Content)
	if content == "" {
		content = template.Content
	}
	vocab := req.Vocabulary
	if len(vocab) == 0 {
		vocab = template.Vocabulary
	}
	exercises := req.Exercises
	if len(exercises) == 0 {
		exercises = template.Exercises
	}
	exercisesJSON, err := json.Marshal(exercises)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid exercises", r))
		return
	}

	lesson := &models.Lesson{
		CourseID:      course.ID,
		Title:         title,
		GrammarFocus:  string(focus),
		Content:       content,
		Vocabulary:    vocab,
		ExercisesJSON: exercisesJSON,
	}
	if err := h.courses.CreateLesson(r.Context(), lesson); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create lesson", r))
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

// ImportLessons accepts a multipart upload with the workbook in "file".
func (h *CourseHandler) ImportLessons(w http.ResponseWriter, r *http.Request) {
	course, ok := h.ownedCourse(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File too large or invalid form", r))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "file is required", r))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Only .xlsx workbooks are supported", r))
		return
	}

	result, err := h.importer.Import(r.Context(), course.ID, file)
	if err != nil {
		h.log.Warn("lesson import failed", "course_id", course.ID, "error", err)
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GenerateLesson queues an AI lesson; progress arrives over /ws.
func (h *CourseHandler) GenerateLesson(w http.ResponseWriter, r *http.Request) {
	course, ok := h.ownedCourse(w, r)
	if !ok {
		return
	}

	var req models.GenerateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"topic": "Topic is required"}, r))
		return
	}
	if req.Level == "" {
		req.Level = course.Level
	}

	configBytes, _ := json.Marshal(req)
	job := &models.Job{
		UserID:      middleware.GetUserID(r.Context()),
		Type:        models.JobTypeLessonGeneration,
		ReferenceID: course.ID,
		ConfigJSON:  configBytes,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error("failed to enqueue lesson job", "job_id", job.ID, "error", err)
		_ = h.jobs.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue lesson job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

func (h *CourseHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "lesson ID")
	if !ok {
		return
	}
	lesson, ok := h.loadLesson(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *CourseHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "lesson ID")
	if !ok {
		return
	}
	lesson, ok := h.loadLesson(w, r, id)
	if !ok {
		return
	}
	course, ok := h.loadCourse(w, r, lesson.CourseID)
	if !ok {
		return
	}
	if course.CreatedBy != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	if err := h.courses.DeleteLesson(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete lesson", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lesson deleted"})
}

// CompleteLesson grants the lesson's XP the first time a user finishes it.
func (h *CourseHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "lesson ID")
	if !ok {
		return
	}
	var req models.CompleteLessonRequest
	// The body is optional; an empty one means score 0.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Score < 0 || req.Score > 100 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"score": "Score must be between 0 and 100"}, r))
		return
	}

	lesson, ok := h.loadLesson(w, r, id)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	first, err := h.courses.CompleteLesson(r.Context(), userID, id, req.Score)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record completion", r))
		return
	}

	awarded := 0
	if first {
		if err := h.xp.AwardXP(r.Context(), userID, services.XPSourceLesson, lesson.XPReward); err != nil {
			h.log.Warn("failed to award lesson xp", "user_id", userID, "lesson_id", id, "error", err)
		} else {
			awarded = lesson.XPReward
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"first_completion": first,
		"xp_awarded":       awarded,
	})
}

func (h *CourseHandler) loadCourse(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*models.Course, bool) {
	course, err := h.courses.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Course not found", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load course", r))
		}
		return nil, false
	}
	return course, true
}

// ownedCourse loads the {id} course and requires the caller to be its author.
func (h *CourseHandler) ownedCourse(w http.ResponseWriter, r *http.Request) (*models.Course, bool) {
	id, ok := urlUUID(w, r, "id", "course ID")
	if !ok {
		return nil, false
	}
	course, ok := h.loadCourse(w, r, id)
	if !ok {
		return nil, false
	}
	if course.CreatedBy != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return course, true
}

func (h *CourseHandler) loadLesson(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*models.Lesson, bool) {
	lesson, err := h.courses.GetLesson(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Lesson not found", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load lesson", r))
		}
		return nil, false
	}
	return lesson, true
}
