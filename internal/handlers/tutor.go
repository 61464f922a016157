package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

type tutorResponder interface {
	Respond(ctx context.Context, req models.TutorRequest) (string, error)
}

type sessionTracker interface {
	Open(ctx context.Context, userID uuid.UUID) (*models.SpeechSession, error)
	Get(sessionID uuid.UUID) (models.SpeechSession, bool)
	RecordUtterance(ctx context.Context, sessionID uuid.UUID, text string) (models.SpeechSession, error)
	RecordReply(sessionID uuid.UUID, text string)
	History(sessionID uuid.UUID) []models.ConversationTurn
	Close(ctx context.Context, sessionID uuid.UUID) *models.SpeechSession
}

type TutorHandler struct {
	tutor    tutorResponder
	sessions sessionTracker
	log      *logger.Logger
}

func NewTutorHandler(tutor tutorResponder, sessions sessionTracker, log *logger.Logger) *TutorHandler {
	return &TutorHandler{tutor: tutor, sessions: sessions, log: log.With("handler", "tutor")}
}

// Respond is a single stateless exchange; the caller sends the history.
func (h *TutorHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req models.TutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := h.tutor.Respond(r.Context(), req)
	if err != nil {
		h.aiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TutorResponse{Response: reply})
}

func (h *TutorHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Open(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start session", r))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Utterance counts the learner's words and answers with the tutor's reply,
// using the session transcript as history.
func (h *TutorHandler) Utterance(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"text": "Text is required"}, r))
		return
	}

	history := h.sessions.History(sessionID)
	sess, err := h.sessions.RecordUtterance(r.Context(), sessionID, text)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}

	reply, err := h.tutor.Respond(r.Context(), models.TutorRequest{Text: text, ConversationHistory: history})
	if err != nil {
		h.aiError(w, r, err)
		return
	}
	h.sessions.RecordReply(sessionID, reply)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":  sess,
		"response": reply,
	})
}

func (h *TutorHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	sess := h.sessions.Close(r.Context(), sessionID)
	if sess == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ownedSession resolves {id} to an open session of the caller. Other users'
// sessions read as not found.
func (h *TutorHandler) ownedSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := urlUUID(w, r, "id", "session ID")
	if !ok {
		return uuid.Nil, false
	}
	sess, ok := h.sessions.Get(id)
	if !ok || sess.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return uuid.Nil, false
	}
	return id, true
}

func (h *TutorHandler) aiError(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := err.(*services.ValidationError); ok {
		handleServiceError(w, r, err)
		return
	}
	h.log.Warn("tutor reply failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to get AI response", r))
}
