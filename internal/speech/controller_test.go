package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-backend/internal/logger"
)

type recordingDriver struct {
	mu   sync.Mutex
	cmds []Command
}

func (d *recordingDriver) Send(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, cmd)
	return nil
}

func (d *recordingDriver) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.cmds))
	for i, c := range d.cmds {
		out[i] = c.Type
	}
	return out
}

func (d *recordingDriver) last(cmdType string) (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.cmds) - 1; i >= 0; i-- {
		if d.cmds[i].Type == cmdType {
			return d.cmds[i], true
		}
	}
	return Command{}, false
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func newTestController(respond Responder, hooks Hooks) (*Controller, *recordingDriver, *[]*fakeTimer) {
	driver := &recordingDriver{}
	c := NewController(context.Background(), driver, respond, hooks, logger.NewNop())
	timers := &[]*fakeTimer{}
	c.afterFunc = func(d time.Duration, f func()) stopper {
		t := &fakeTimer{d: d, f: f}
		*timers = append(*timers, t)
		return t
	}
	return c, driver, timers
}

func echo(ctx context.Context, text string) (string, error) {
	return "You said: " + text, nil
}

func TestFullTurn(t *testing.T) {
	var utterances, replies []string
	var mu sync.Mutex
	c, driver, timers := newTestController(echo, Hooks{
		OnUtterance: func(s string) { mu.Lock(); utterances = append(utterances, s); mu.Unlock() },
		OnReply:     func(s string) { mu.Lock(); replies = append(replies, s); mu.Unlock() },
	})

	require.NoError(t, c.StartListening())
	assert.Equal(t, StateListening, c.State())
	require.Len(t, *timers, 1)
	assert.Equal(t, DefaultListenTimeout, (*timers)[0].d)

	start, ok := driver.last(CmdRecognizerStart)
	require.True(t, ok)
	assert.Equal(t, "en-US", start.Lang)
	assert.True(t, start.Continuous)
	assert.True(t, start.InterimResults)

	c.HandleTranscript("I am", false)
	assert.Equal(t, StateListening, c.State())

	c.HandleTranscript("I am a student", true)
	assert.True(t, (*timers)[0].stopped)

	assert.Eventually(t, func() bool { return c.State() == StateSpeaking }, time.Second, 5*time.Millisecond)
	speak, ok := driver.last(CmdSpeak)
	require.True(t, ok)
	assert.Equal(t, "You said: I am a student", speak.Text)
	assert.Equal(t, 1.0, speak.Rate)

	c.HandleSpeechEnded()
	assert.Equal(t, StateIdle, c.State())

	mu.Lock()
	assert.Equal(t, []string{"I am a student"}, utterances)
	assert.Equal(t, []string{"You said: I am a student"}, replies)
	mu.Unlock()
	assert.Contains(t, driver.types(), CmdRecognizerStop)
}

func TestStartListeningOnlyFromIdleOrError(t *testing.T) {
	c, _, _ := newTestController(echo, Hooks{})

	require.NoError(t, c.StartListening())
	assert.ErrorIs(t, c.StartListening(), ErrInvalidTransition)

	c.HandleRecognitionError(ErrCodeNoSpeech)
	assert.Equal(t, StateError, c.State())
	assert.NoError(t, c.StartListening())
}

func TestRecognitionErrors(t *testing.T) {
	cases := map[string]string{
		ErrCodeNoSpeech:     RecognitionErrorMessage(ErrCodeNoSpeech),
		ErrCodeAudioCapture: RecognitionErrorMessage(ErrCodeAudioCapture),
		ErrCodeNotAllowed:   RecognitionErrorMessage(ErrCodeNotAllowed),
		"network":           RecognitionErrorMessage("network"),
	}
	for code, msg := range cases {
		c, _, _ := newTestController(echo, Hooks{})
		require.NoError(t, c.StartListening())

		c.HandleRecognitionError(code)

		assert.Equal(t, StateError, c.State(), code)
		assert.Equal(t, msg, c.LastError(), code)
	}
	assert.NotEqual(t, RecognitionErrorMessage(ErrCodeNoSpeech), RecognitionErrorMessage(ErrCodeNotAllowed))
}

func TestAbortedIsSilent(t *testing.T) {
	c, _, _ := newTestController(echo, Hooks{})
	require.NoError(t, c.StartListening())

	c.HandleRecognitionError(ErrCodeAborted)

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.LastError())
}

func TestListenTimeoutStopsRecognizer(t *testing.T) {
	c, driver, timers := newTestController(echo, Hooks{})
	c.SetListenTimeout(5 * time.Second)
	require.NoError(t, c.StartListening())
	require.Len(t, *timers, 1)
	assert.Equal(t, MinListenTimeout, (*timers)[0].d)

	(*timers)[0].f()

	assert.Equal(t, StateIdle, c.State())
	_, ok := driver.last(CmdRecognizerStop)
	assert.True(t, ok)
}

func TestStaleTimerIgnored(t *testing.T) {
	c, _, timers := newTestController(echo, Hooks{})
	require.NoError(t, c.StartListening())
	c.Stop()
	require.NoError(t, c.StartListening())

	(*timers)[0].f()

	assert.Equal(t, StateListening, c.State())
}

func TestStopDuringProcessingDropsReply(t *testing.T) {
	release := make(chan struct{})
	var replied bool
	c, driver, _ := newTestController(func(ctx context.Context, text string) (string, error) {
		<-release
		return "late", nil
	}, Hooks{OnReply: func(string) { replied = true }})

	require.NoError(t, c.StartListening())
	c.HandleTranscript("hello", true)
	assert.Equal(t, StateProcessing, c.State())

	c.Stop()
	close(release)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, StateIdle, c.State())
	_, spoke := driver.last(CmdSpeak)
	assert.False(t, spoke)
	assert.False(t, replied)
	assert.Contains(t, driver.types(), CmdSpeechCancel)
	assert.Contains(t, driver.types(), CmdRecognizerAbort)
}

func TestSlowUtteranceHookDoesNotBlockStop(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	c, driver, _ := newTestController(echo, Hooks{
		OnUtterance: func(string) {
			close(entered)
			<-release
		},
	})

	require.NoError(t, c.StartListening())
	c.HandleTranscript("hello there", true)
	<-entered

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked behind the utterance hook")
	}
	assert.Equal(t, StateIdle, c.State())

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())
	_, spoke := driver.last(CmdSpeak)
	assert.False(t, spoke)
}

func TestResponderFailureReturnsToIdle(t *testing.T) {
	c, _, _ := newTestController(func(ctx context.Context, text string) (string, error) {
		return "", errors.New("model unavailable")
	}, Hooks{})

	require.NoError(t, c.StartListening())
	c.HandleTranscript("hello", true)

	assert.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, c.LastError())
}

func TestEventsIgnoredInWrongState(t *testing.T) {
	c, driver, _ := newTestController(echo, Hooks{})

	c.HandleTranscript("hello", true)
	c.HandleRecognitionError(ErrCodeNoSpeech)
	c.HandleSpeechEnded()

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, driver.types())
}

func TestRateClamped(t *testing.T) {
	c, driver, _ := newTestController(echo, Hooks{})
	c.SetRate(3)
	require.NoError(t, c.StartListening())
	c.HandleTranscript("hi", true)

	assert.Eventually(t, func() bool { return c.State() == StateSpeaking }, time.Second, 5*time.Millisecond)
	speak, _ := driver.last(CmdSpeak)
	assert.Equal(t, MaxRate, speak.Rate)

	c.SetRate(0.1)
	assert.Equal(t, MinRate, c.rate)
}

func TestPickVoice(t *testing.T) {
	voices := []Voice{
		{Name: "Thomas", Lang: "fr-FR", LocalService: true},
		{Name: "Samantha", Lang: "en-US", LocalService: true},
		{Name: "Microsoft Aria", Lang: "en-US"},
		{Name: "Google US English", Lang: "en-US"},
	}
	assert.Equal(t, "Google US English", PickVoice(voices).Name)
	assert.Equal(t, "Microsoft Aria", PickVoice(voices[:3]).Name)
	assert.Equal(t, "Samantha", PickVoice(voices[:2]).Name)
	assert.Equal(t, "Daniel", PickVoice([]Voice{{Name: "Daniel", Lang: "en-GB"}}).Name)
	assert.Nil(t, PickVoice(voices[:1]))
}
