package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-backend/internal/models"
)

type chatModelStub struct {
	reply   string
	err     error
	history []models.ConversationTurn
	text    string
}

func (m *chatModelStub) Chat(ctx context.Context, system string, history []models.ConversationTurn, text string) (string, error) {
	m.history = history
	m.text = text
	return m.reply, m.err
}

func TestTutorRespond(t *testing.T) {
	model := &chatModelStub{reply: "  Great! What do you study?  "}
	svc := NewTutorService(model)

	reply, err := svc.Respond(context.Background(), models.TutorRequest{
		Text:                " I am a student ",
		ConversationHistory: []models.ConversationTurn{{Role: "tutor", Content: "Hello!"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Great! What do you study?", reply)
	assert.Equal(t, "I am a student", model.text)
	assert.Len(t, model.history, 1)
}

func TestTutorRespondRequiresText(t *testing.T) {
	svc := NewTutorService(&chatModelStub{})

	_, err := svc.Respond(context.Background(), models.TutorRequest{Text: "   "})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "text")
}

func TestTutorRespondTrimsHistory(t *testing.T) {
	model := &chatModelStub{reply: "ok"}
	svc := NewTutorService(model)
	var history []models.ConversationTurn
	for i := 0; i < 30; i++ {
		history = append(history, models.ConversationTurn{Role: "user", Content: fmt.Sprint(i)})
	}

	_, err := svc.Respond(context.Background(), models.TutorRequest{Text: "hi", ConversationHistory: history})

	require.NoError(t, err)
	require.Len(t, model.history, maxTutorHistory)
	assert.Equal(t, "10", model.history[0].Content)
}

func TestTutorRespondErrorAndEmptyReply(t *testing.T) {
	_, err := NewTutorService(&chatModelStub{err: errors.New("quota")}).Respond(context.Background(), models.TutorRequest{Text: "hi"})
	assert.Error(t, err)

	reply, err := NewTutorService(&chatModelStub{reply: ""}).Respond(context.Background(), models.TutorRequest{Text: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
