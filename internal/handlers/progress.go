package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

type progressReader interface {
	Progress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error)
}

type achievementLister interface {
	List(ctx context.Context, userID uuid.UUID) ([]services.AchievementStatus, error)
}

type ProgressHandler struct {
	progress     progressReader
	achievements achievementLister
}

func NewProgressHandler(progress progressReader, achievements achievementLister) *ProgressHandler {
	return &ProgressHandler{progress: progress, achievements: achievements}
}

func (h *ProgressHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.Progress(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load progress", r))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProgressHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.achievements.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load achievements", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": list})
}
