// Package engine implements the conversation loop: listen, transcribe,
// respond, speak, repeat.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// Console lines printed by the loop.
const (
	MsgListening  = "Listening..."
	MsgProcessing = "Processing..."
	MsgShutdown   = "Gracefully shutting down..."
)

// Option configures the engine.
type Option func(*Engine)

// WithPushToTalk gates every capture on the prompter.
func WithPushToTalk(p domain.Prompter) Option {
	return func(e *Engine) { e.prompter = p }
}

// WithStateHook registers an observer called on every state change.
func WithStateHook(fn func(from, to domain.State)) Option {
	return func(e *Engine) { e.hook = fn }
}

// Engine drives one character through a single session. It depends only on
// ports and runs on the caller's goroutine.
type Engine struct {
	character   domain.Character
	sessionID   string
	listener    domain.Listener
	transcriber domain.Transcriber
	responder   domain.Responder
	speaker     domain.Speaker
	console     domain.Console
	prompter    domain.Prompter
	hook        func(from, to domain.State)
	log         *logger.Logger

	mu       sync.Mutex
	state    domain.State
	greeted  bool
	announce bool // print MsgListening at the start of the next capture
}

// New creates an engine for character in session sessionID.
func New(
	character domain.Character,
	sessionID string,
	listener domain.Listener,
	transcriber domain.Transcriber,
	responder domain.Responder,
	speaker domain.Speaker,
	console domain.Console,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		character:   character,
		sessionID:   sessionID,
		listener:    listener,
		transcriber: transcriber,
		responder:   responder,
		speaker:     speaker,
		console:     console,
		log:         log,
		state:       domain.StateGreeting,
		announce:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current loop state.
func (e *Engine) State() domain.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run greets the user once and then loops until ctx is cancelled or the
// push-to-talk input is closed, both of which return nil.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine: %s starting session %s", e.character.ID, e.sessionID)

	if err := e.Greet(ctx); err != nil {
		return e.stop(err)
	}
	for {
		if err := e.Step(ctx); err != nil {
			return e.stop(err)
		}
	}
}

// Greet speaks the character's greeting. Later calls do nothing.
func (e *Engine) Greet(ctx context.Context) error {
	e.mu.Lock()
	done := e.greeted
	e.greeted = true
	e.mu.Unlock()
	if done {
		return nil
	}

	e.transition(domain.StateGreeting)
	return e.say(ctx, e.character.Greeting)
}

// Step runs one Listening → … → Listening cycle. It returns an error only
// when the loop must end: ctx was cancelled or the prompter failed.
func (e *Engine) Step(ctx context.Context) error {
	e.transition(domain.StateListening)

	if e.prompter != nil {
		if err := e.prompter.WaitForTalk(ctx); err != nil {
			return err
		}
	}
	if e.announce {
		e.console.PrintHint(MsgListening)
		e.announce = false
	}

	utterance, err := e.listener.Capture(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.console.PrintHint(MsgProcessing)
	e.announce = true

	e.transition(domain.StateTranscribing)
	var text string
	if err == nil {
		text, err = e.transcriber.Transcribe(ctx, utterance)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err != nil || text == "" {
		if err != nil && !errors.Is(err, domain.ErrNoTranscript) {
			e.console.PrintUrgent("Error: " + err.Error())
		}
		e.log.Debug("engine: no transcript: %v", err)
		return e.say(ctx, e.character.ErrorMessage)
	}
	e.console.PrintVoice(text)

	e.transition(domain.StateResponding)
	reply, err := e.responder.Reply(ctx, e.sessionID, text)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		e.log.Error("engine: reply failed: %v", err)
		e.console.PrintUrgent("Error: " + err.Error())
		return e.say(ctx, e.character.ErrorMessage)
	}
	return e.say(ctx, reply)
}

// say prints and speaks text as the character. Synthesis and playback
// failures are reported and swallowed; only cancellation propagates.
func (e *Engine) say(ctx context.Context, text string) error {
	if e.State() != domain.StateGreeting {
		e.transition(domain.StateSpeaking)
	}
	e.console.PrintChat(e.character.Name, text)

	if err := e.speaker.Speak(ctx, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.log.Error("engine: speech failed: %v", err)
		e.console.PrintUrgent("Error during speech synthesis: " + err.Error())
	}
	return nil
}

// stop moves to ShuttingDown and maps the expected exit reasons to nil.
func (e *Engine) stop(err error) error {
	e.transition(domain.StateShuttingDown)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		e.console.PrintHint(MsgShutdown)
		e.log.Info("engine: shutdown (%v)", err)
		return nil
	}
	e.log.Error("engine: stopped: %v", err)
	return err
}

func (e *Engine) transition(to domain.State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()

	if from == to {
		return
	}
	e.log.Debug("engine: %s -> %s", from, to)
	if e.hook != nil {
		e.hook(from, to)
	}
}
