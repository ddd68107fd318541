package internal

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrFull             = errors.New("room full")
	ErrValidationFailed = errors.New("validation failed")
)

// GameError carries a message meant for the player that triggered it. Kind is
// one of the sentinel errors above so callers can use errors.Is.
type GameError struct {
	Kind    error
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func (e *GameError) Unwrap() error {
	return e.Kind
}

func NewGameError(kind error, format string, args ...any) error {
	return &GameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode maps an error to the code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrFull):
		return "full"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	default:
		return "internal"
	}
}
