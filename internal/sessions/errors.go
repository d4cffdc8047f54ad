package sessions

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by Service wraps exactly one of them.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("state conflict")
	ErrForbidden    = errors.New("not authorized")
	ErrProvider     = errors.New("provider error")
	ErrStore        = errors.New("store error")
)

var (
	ErrSessionNotFound      = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrParticipantNotFound  = fmt.Errorf("%w: participant not found", ErrNotFound)
	ErrSessionNotActive     = fmt.Errorf("%w: session is not active", ErrConflict)
	ErrDuplicateParticipant = fmt.Errorf("%w: participant already active in session", ErrConflict)
	ErrNotHost              = fmt.Errorf("%w: only the host can end the session", ErrForbidden)
	ErrProviderUnavailable  = fmt.Errorf("%w: provider is not available", ErrProvider)
)

// invalid builds a validation error naming the offending field.
func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
