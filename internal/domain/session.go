package domain

import "time"

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is a snapshot of one conversation's history. The store owns the
// live copy; callers only ever see snapshots.
type Session struct {
	ID        string
	Turns     []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn is one completed exchange: what the human said and what the
// character answered. Both halves are recorded together or not at all.
type Turn struct {
	ID        string
	Human     string
	Assistant string
	At        time.Time
}

// Messages expands the turn into its user and assistant messages.
func (t Turn) Messages() []Message {
	return []Message{
		{Role: RoleUser, Content: t.Human},
		{Role: RoleAssistant, Content: t.Assistant},
	}
}

// Message is a single role-tagged entry of the history view handed to the
// chat backend.
type Message struct {
	Role       string
	Content    string
	TokenCount int // estimated
}

// Utterance is one captured stretch of microphone audio.
type Utterance struct {
	PCM        []int16 // mono, signed 16-bit
	SampleRate int
	Duration   time.Duration
}
