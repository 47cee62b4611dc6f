package internal

import "errors"

var (
	// ErrInvalidState is a precondition violation in the game flow. It is surfaced to
	// the caller and never papered over.
	ErrInvalidState = errors.New("invalid game state")

	// ErrInputRejected marks user input refused at the boundary before any mutation.
	ErrInputRejected = errors.New("input rejected")

	// ErrGenerationFailed wraps backend failures; callers recover with canned content.
	ErrGenerationFailed = errors.New("generation failed")

	ErrGameNotFound = errors.New("game not found")
)
