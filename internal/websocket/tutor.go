package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/models"
	"lingua-backend/internal/speech"
)

// Browser → server message types on /tutor/ws.
const (
	TutorStart            = "start"
	TutorTranscript       = "transcript"
	TutorRecognitionError = "recognition_error"
	TutorSpeechEnded      = "speech_ended"
	TutorStop             = "stop"
	TutorSettings         = "settings"
	TutorVoices           = "voices"
	TutorEnd              = "end"
)

// Server → browser types besides speech commands.
const (
	TutorSessionStarted = "session_started"
	TutorSessionEnded   = "session_ended"
)

const sessionCloseTimeout = 10 * time.Second

type tutorSessions interface {
	Open(ctx context.Context, userID uuid.UUID) (*models.SpeechSession, error)
	RecordUtterance(ctx context.Context, sessionID uuid.UUID, text string) (models.SpeechSession, error)
	RecordReply(sessionID uuid.UUID, text string)
	History(sessionID uuid.UUID) []models.ConversationTurn
	Close(ctx context.Context, sessionID uuid.UUID) *models.SpeechSession
}

type tutorResponder interface {
	Respond(ctx context.Context, req models.TutorRequest) (string, error)
}

// TutorHandler serves the voice tutor. Each connection gets its own speech
// controller and, when the row can be written, a tracked session.
type TutorHandler struct {
	auth          tokenParser
	sessions      tutorSessions
	tutor         tutorResponder
	log           *logger.Logger
	listenTimeout time.Duration
	rate          float64

	mu      sync.Mutex
	conns   map[*conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewTutorHandler(auth tokenParser, sessions tutorSessions, tutor tutorResponder, log *logger.Logger, listenTimeout time.Duration, rate float64) *TutorHandler {
	return &TutorHandler{
		auth:          auth,
		sessions:      sessions,
		tutor:         tutor,
		log:           log.With("component", "tutor_ws"),
		listenTimeout: listenTimeout,
		rate:          rate,
		conns:         make(map[*conn]struct{}),
	}
}

// track registers a live connection unless Shutdown has started.
func (h *TutorHandler) track(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *TutorHandler) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	h.wg.Done()
}

func (h *TutorHandler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// Shutdown closes every tutor connection and waits until their sessions are
// finalized or ctx expires. Later upgrades are refused.
func (h *TutorHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type tutorInbound struct {
	Type                 string         `json:"type"`
	Text                 string         `json:"text"`
	Final                bool           `json:"final"`
	Error                string         `json:"error"`
	ListenTimeoutSeconds int            `json:"listen_timeout_seconds"`
	Rate                 float64        `json:"rate"`
	Voices               []speech.Voice `json:"voices"`
}

type connDriver struct {
	c *conn
}

func (d connDriver) Send(cmd speech.Command) error {
	return d.c.writeJSON(cmd)
}

func (h *TutorHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(h.auth, w, r)
	if !ok {
		return
	}

	if h.isClosing() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := newConn(ws)
	if !h.track(c) {
		c.close()
		return
	}
	defer h.untrack(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a session row the conversation still works, it just isn't counted.
	var sessionID uuid.UUID
	if sess, err := h.sessions.Open(ctx, userID); err != nil {
		h.log.Warn("tutor session not tracked", "user_id", userID, "error", err)
	} else {
		sessionID = sess.ID
		_ = c.writeJSON(models.WSMessage{Type: TutorSessionStarted, Payload: sess})
	}

	ctrl := speech.NewController(ctx, connDriver{c: c}, h.responder(sessionID), h.hooks(ctx, sessionID), h.log)
	ctrl.SetListenTimeout(h.listenTimeout)
	ctrl.SetRate(h.rate)

	ended := false
	defer func() {
		ctrl.Close()
		if !ended {
			h.closeSession(sessionID)
		}
		c.close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg tutorInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == TutorEnd {
			ctrl.Stop()
			summary := h.closeSession(sessionID)
			ended = true
			_ = c.writeJSON(models.WSMessage{Type: TutorSessionEnded, Payload: summary})
			return
		}
		h.dispatch(ctrl, msg)
	}
}

func (h *TutorHandler) dispatch(ctrl *speech.Controller, msg tutorInbound) {
	switch msg.Type {
	case TutorStart:
		if err := ctrl.StartListening(); err != nil {
			h.log.Debug("start ignored", "state", ctrl.State())
		}
	case TutorTranscript:
		ctrl.HandleTranscript(msg.Text, msg.Final)
	case TutorRecognitionError:
		ctrl.HandleRecognitionError(msg.Error)
	case TutorSpeechEnded:
		ctrl.HandleSpeechEnded()
	case TutorStop:
		ctrl.Stop()
	case TutorSettings:
		if msg.ListenTimeoutSeconds > 0 {
			ctrl.SetListenTimeout(time.Duration(msg.ListenTimeoutSeconds) * time.Second)
		}
		if msg.Rate > 0 {
			ctrl.SetRate(msg.Rate)
		}
	case TutorVoices:
		ctrl.SetVoices(msg.Voices)
	}
}

// responder sends the tracked transcript as history. The hook has already
// recorded the current utterance, so it is dropped from the history here.
func (h *TutorHandler) responder(sessionID uuid.UUID) speech.Responder {
	return func(ctx context.Context, text string) (string, error) {
		var history []models.ConversationTurn
		if sessionID != uuid.Nil {
			history = h.sessions.History(sessionID)
			if n := len(history); n > 0 && history[n-1].Role == models.RoleUser && history[n-1].Content == text {
				history = history[:n-1]
			}
		}
		return h.tutor.Respond(ctx, models.TutorRequest{Text: text, ConversationHistory: history})
	}
}

func (h *TutorHandler) hooks(ctx context.Context, sessionID uuid.UUID) speech.Hooks {
	if sessionID == uuid.Nil {
		return speech.Hooks{}
	}
	return speech.Hooks{
		OnUtterance: func(text string) {
			if _, err := h.sessions.RecordUtterance(ctx, sessionID, text); err != nil {
				h.log.Warn("utterance not recorded", "session_id", sessionID, "error", err)
			}
		},
		OnReply: func(text string) {
			h.sessions.RecordReply(sessionID, text)
		},
	}
}

// closeSession runs on a fresh context; the connection is usually gone.
func (h *TutorHandler) closeSession(sessionID uuid.UUID) *models.SpeechSession {
	if sessionID == uuid.Nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
	defer cancel()
	return h.sessions.Close(ctx, sessionID)
}
