package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
)

type chatService interface {
	CreateGroup(ctx context.Context, creatorID uuid.UUID, req models.CreateRoomRequest) (*models.ChatRoom, error)
	OpenDirect(ctx context.Context, userID, otherID uuid.UUID) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, userID uuid.UUID) ([]*models.ChatRoom, error)
	Send(ctx context.Context, userID, roomID uuid.UUID, req models.SendMessageRequest) (*models.ChatMessage, error)
	History(ctx context.Context, userID, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error)
}

type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.chat.ListRooms(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	room, err := h.chat.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *ChatHandler) OpenDirect(w http.ResponseWriter, r *http.Request) {
	var req models.DirectRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	room, err := h.chat.OpenDirect(r.Context(), middleware.GetUserID(r.Context()), req.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Messages returns messages with seq > after_seq, oldest first. Clients call
// it once on open and again only when they detect a gap.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := urlUUID(w, r, "id", "room ID")
	if !ok {
		return
	}

	var afterSeq int64
	if v := r.URL.Query().Get("after_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid after_seq", r))
			return
		}
		afterSeq = n
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.chat.History(r.Context(), middleware.GetUserID(r.Context()), roomID, afterSeq, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	roomID, ok := urlUUID(w, r, "id", "room ID")
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	msg, err := h.chat.Send(r.Context(), middleware.GetUserID(r.Context()), roomID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
