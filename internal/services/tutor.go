package services

import (
	"context"
	"strings"

	"lingua-backend/internal/models"
)

const tutorSystemPrompt = `You are a friendly English conversation tutor talking with a learner by voice.
Reply in plain spoken English, two or three short sentences, no lists or markdown.
If the learner made a grammar or word-choice mistake, repeat their sentence correctly once, kindly.
End with a simple follow-up question that keeps the conversation going.`

// maxTutorHistory bounds how many earlier turns are sent with each request.
const maxTutorHistory = 20

type chatModel interface {
	Chat(ctx context.Context, system string, history []models.ConversationTurn, text string) (string, error)
}

type TutorService struct {
	model chatModel
}

func NewTutorService(model chatModel) *TutorService {
	return &TutorService{model: model}
}

// Respond is one request/response exchange. There is no retry: a failed
// call is reported to the caller as is.
func (s *TutorService) Respond(ctx context.Context, req models.TutorRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", &ValidationError{Fields: map[string]string{"text": "Text is required"}}
	}

	history := req.ConversationHistory
	if len(history) > maxTutorHistory {
		history = history[len(history)-maxTutorHistory:]
	}

	reply, err := s.model.Chat(ctx, tutorSystemPrompt, history, text)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "Sorry, I didn't catch that. Could you say it again?"
	}
	return reply, nil
}
