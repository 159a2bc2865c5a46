package domain

// State is a phase of the conversation loop.
type State int

const (
	StateGreeting State = iota
	StateListening
	StateTranscribing
	StateResponding
	StateSpeaking
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "greeting"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateResponding:
		return "responding"
	case StateSpeaking:
		return "speaking"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}
