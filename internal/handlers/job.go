package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
)

type jobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Cancel(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type JobHandler struct {
	jobRepo jobReader
}

func NewJobHandler(jobRepo jobReader) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "job ID")
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if job.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// CancelJob only affects jobs that no worker has picked up yet.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "job ID")
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if job.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	cancelled, err := h.jobRepo.Cancel(r.Context(), id, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to cancel job", r))
		return
	}
	if !cancelled {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Job is already running or finished", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}
