package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
)

type presenceService interface {
	CheckOnlineStatus(ctx context.Context, userID, groupID uuid.UUID) models.OnlineStatus
	Heartbeat(ctx context.Context, userID, groupID uuid.UUID) error
	MarkOffline(ctx context.Context, userID, groupID uuid.UUID) error
}

// PresenceHandler is the HTTP side of presence for clients that cannot keep
// a WebSocket open. Writes always target the caller's own row.
type PresenceHandler struct {
	presence presenceService
}

func NewPresenceHandler(presence presenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) Status(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "groupID", "group ID")
	if !ok {
		return
	}
	userID, ok := urlUUID(w, r, "userID", "user ID")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.presence.CheckOnlineStatus(r.Context(), userID, groupID))
}

func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "groupID", "group ID")
	if !ok {
		return
	}
	if err := h.presence.Heartbeat(r.Context(), middleware.GetUserID(r.Context()), groupID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record heartbeat", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Heartbeat recorded"})
}

// Offline is sent when a page closes; the sweeper covers tabs that never do.
func (h *PresenceHandler) Offline(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "groupID", "group ID")
	if !ok {
		return
	}
	if err := h.presence.MarkOffline(r.Context(), middleware.GetUserID(r.Context()), groupID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record offline", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Marked offline"})
}
