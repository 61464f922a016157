package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"lingua-backend/internal/logger"
)

var ErrInvalidTransition = errors.New("invalid speech state transition")

const (
	MinListenTimeout     = 10 * time.Second
	MaxListenTimeout     = 60 * time.Second
	DefaultListenTimeout = 30 * time.Second

	MinRate = 0.5
	MaxRate = 1.5
)

// Driver delivers commands to the browser.
type Driver interface {
	Send(cmd Command) error
}

// Responder turns a final user utterance into the tutor's reply.
type Responder func(ctx context.Context, text string) (string, error)

// Hooks observe the conversation. Either may be nil. OnUtterance is called
// outside the controller lock, before the reply is requested.
type Hooks struct {
	OnUtterance func(text string)
	OnReply     func(text string)
}

type stopper interface {
	Stop() bool
}

// Controller is the per-connection speech state machine:
// Idle → Listening → Processing → Speaking → Idle, with Error reachable from
// Listening. Stop returns to Idle from anywhere.
type Controller struct {
	driver  Driver
	respond Responder
	hooks   Hooks
	log     *logger.Logger

	afterFunc func(d time.Duration, f func()) stopper

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	state   State
	lastErr string
	timeout time.Duration
	rate    float64
	voice   string
	timer   stopper
	// gen invalidates timers and AI replies that belong to an earlier turn.
	gen uint64
}

func NewController(ctx context.Context, driver Driver, respond Responder, hooks Hooks, log *logger.Logger) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	return &Controller{
		driver:  driver,
		respond: respond,
		hooks:   hooks,
		log:     log.With("component", "speech"),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		timeout: DefaultListenTimeout,
		rate:    1.0,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the user-facing message of the latest failure, if any.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetListenTimeout clamps d to 10–60s.
func (c *Controller) SetListenTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = clampDuration(d, MinListenTimeout, MaxListenTimeout)
}

// SetRate clamps the synthesis rate to 0.5–1.5.
func (c *Controller) SetRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = clampFloat(rate, MinRate, MaxRate)
}

// SetVoices picks the synthesis voice from what the browser offers.
func (c *Controller) SetVoices(voices []Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := PickVoice(voices); v != nil {
		c.voice = v.Name
	} else {
		c.voice = ""
	}
}

// StartListening is the user pressing the microphone button.
func (c *Controller) StartListening() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateError {
		return ErrInvalidTransition
	}
	c.gen++
	c.send(Command{Type: CmdRecognizerStart, Lang: Lang, Continuous: true, InterimResults: true})
	c.setState(StateListening, "")

	gen := c.gen
	c.timer = c.afterFunc(c.timeout, func() { c.listenTimedOut(gen) })
	return nil
}

func (c *Controller) listenTimedOut(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateListening {
		return
	}
	c.timer = nil
	c.send(Command{Type: CmdRecognizerStop})
	c.setState(StateIdle, "")
}

// HandleTranscript receives recognizer output. Interim text is echoed for
// display; a final segment ends listening and goes to the AI.
func (c *Controller) HandleTranscript(text string, final bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateListening {
		return
	}
	if !final {
		c.send(Command{Type: CmdTranscript, Role: "user", Text: text})
		return
	}
	if text == "" {
		return
	}

	c.clearTimer()
	c.send(Command{Type: CmdRecognizerStop})
	c.setState(StateProcessing, "")

	gen := c.gen
	go c.process(gen, text)
}

// process runs without c.mu until the reply is back. OnUtterance may write to
// the database, so a slow write never holds up Stop or recognizer events.
func (c *Controller) process(gen uint64, text string) {
	if c.hooks.OnUtterance != nil {
		c.hooks.OnUtterance(text)
	}
	reply, err := c.respond(c.ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateProcessing {
		return
	}
	if err != nil {
		c.log.Warn("tutor reply failed", "error", err)
		c.setState(StateIdle, "The tutor could not answer. Please try again.")
		return
	}

	if c.hooks.OnReply != nil {
		c.hooks.OnReply(reply)
	}
	c.send(Command{Type: CmdTranscript, Role: "tutor", Text: reply})
	c.send(Command{Type: CmdSpeak, Text: reply, Lang: Lang, Rate: c.rate, Voice: c.voice})
	c.setState(StateSpeaking, "")
}

// HandleRecognitionError handles a recognizer failure. "aborted" is the
// result of our own abort and returns to Idle without a message.
func (c *Controller) HandleRecognitionError(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateListening {
		return
	}
	c.clearTimer()
	if code == ErrCodeAborted {
		c.setState(StateIdle, "")
		return
	}
	c.setState(StateError, RecognitionErrorMessage(code))
}

// HandleSpeechEnded is the synthesizer's end or error callback.
func (c *Controller) HandleSpeechEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSpeaking {
		return
	}
	c.setState(StateIdle, "")
}

// Stop cancels synthesis, aborts recognition and clears timers.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.clearTimer()
	c.send(Command{Type: CmdSpeechCancel})
	c.send(Command{Type: CmdRecognizerAbort})
	c.setState(StateIdle, "")
}

// Close releases the controller; pending AI calls are cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.clearTimer()
	c.state = StateIdle
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) clearTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) setState(s State, errMsg string) {
	c.state = s
	c.lastErr = errMsg
	c.send(Command{Type: CmdState, State: s, Error: errMsg})
}

func (c *Controller) send(cmd Command) {
	if err := c.driver.Send(cmd); err != nil {
		c.log.Debug("speech command not delivered", "type", cmd.Type, "error", err)
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampFloat(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
