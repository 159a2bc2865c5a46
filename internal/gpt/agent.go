package gpt

import (
	"context"
	"fmt"
	"time"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// Compile-time interface check.
var _ domain.Responder = (*Agent)(nil)

// chatter is the part of Client the Agent needs.
type chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// AgentOption configures the Agent.
type AgentOption func(*Agent)

// WithReplyTimeout bounds a single chat call. Zero means no extra bound
// beyond the client's own.
func WithReplyTimeout(d time.Duration) AgentOption {
	return func(a *Agent) { a.timeout = d }
}

// Agent wraps the chat Client with the character's persona and the session
// history. It is the only component that appends turns to the history store.
type Agent struct {
	client    chatter
	store     domain.HistoryStore
	character domain.Character
	timeout   time.Duration
	log       *logger.Logger
}

// NewAgent creates a character agent backed by the given client and store.
func NewAgent(client chatter, store domain.HistoryStore, character domain.Character, log *logger.Logger, opts ...AgentOption) *Agent {
	a := &Agent{
		client:    client,
		store:     store,
		character: character,
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reply sends the input with the persona prompt and session history, and on
// success records the exchange. On failure the history is left untouched.
func (a *Agent) Reply(ctx context.Context, sessionID, input string) (string, error) {
	history, err := a.store.HistoryFor(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading history for %s: %w", sessionID, err)
	}

	messages := a.buildMessages(history, input)

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.client.Chat(callCtx, messages)
	if err != nil {
		return "", err
	}
	a.log.Debug("agent: %s replied in %s", a.character.ID, time.Since(start).Round(time.Millisecond))

	turn, err := a.store.AppendTurn(ctx, sessionID, input, reply)
	if err != nil {
		return "", fmt.Errorf("recording turn: %w", err)
	}
	a.log.Info("session %s: turn %s recorded", sessionID, turn.ID)
	return reply, nil
}

// buildMessages lays out [system, history..., user].
func (a *Agent) buildMessages(history []domain.Message, input string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, TextMessage(RoleSystem, a.character.SystemPrompt))
	for _, m := range history {
		role := RoleUser
		if m.Role == domain.RoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, TextMessage(role, m.Content))
	}
	msgs = append(msgs, TextMessage(RoleUser, input))
	return msgs
}
