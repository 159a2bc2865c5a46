package domain

import "context"

// HistoryStore keeps per-session conversation history. Implementations can be
// in-memory or anything else that preserves insertion order.
type HistoryStore interface {
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	AppendTurn(ctx context.Context, id, human, assistant string) (Turn, error)
	HistoryFor(ctx context.Context, id string) ([]Message, error)
	Len(ctx context.Context, id string) (int, error)
}

// Listener captures one utterance from the microphone.
type Listener interface {
	Capture(ctx context.Context) (*Utterance, error)
}

// Transcriber converts an utterance into text. A blank result or ErrNoTranscript
// means nothing usable was heard.
type Transcriber interface {
	Transcribe(ctx context.Context, u *Utterance) (string, error)
}

// Responder produces the character's reply to the user's input and records the
// exchange in the session history.
type Responder interface {
	Reply(ctx context.Context, sessionID, input string) (string, error)
}

// Speaker synthesizes text and plays it. Speak blocks until playback ends.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Prompter gates recording in push-to-talk mode. WaitForTalk blocks until the
// operator signals readiness.
type Prompter interface {
	WaitForTalk(ctx context.Context) error
}

// Console renders conversation output for the operator.
type Console interface {
	PrintHint(text string)
	PrintVoice(text string)
	PrintChat(speaker, text string)
	PrintUrgent(text string)
}
