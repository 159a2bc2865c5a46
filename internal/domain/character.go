package domain

// Character is a persona bundle. Values are immutable once registered.
type Character struct {
	ID           string
	Name         string
	SystemPrompt string
	Greeting     string
	ErrorMessage string // spoken when the user could not be understood
}
