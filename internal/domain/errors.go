package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownCharacter = fmt.Errorf("character %w", ErrNotFound)
	ErrInvalidSession   = errors.New("invalid session id")
	ErrPartialTurn      = errors.New("turn requires both human and assistant text")
	ErrNoTranscript     = errors.New("no transcript")
	ErrEmptyReply       = errors.New("empty reply")
	ErrVoiceLoad        = errors.New("voice model failed to load")
)
