package page

import (
	"context"
	"errors"
)

// Page package errors.
var (
	// ErrAlreadyMounted indicates Mount was called on a mounted page.
	ErrAlreadyMounted = errors.New("page: already mounted")

	// ErrUnknownAction indicates an action name the page does not handle.
	ErrUnknownAction = errors.New("page: unknown action")

	// ErrAlreadyStarted indicates a refresh timer was started twice.
	ErrAlreadyStarted = errors.New("page: refresh timer already started")
)

// ValidationError reports invalid user input. It is surfaced to the user
// as an error toast and never mutates page state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid returns a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// userMessager is implemented by errors that carry a message meant for
// display (api.Error does).
type userMessager interface {
	UserMessage() string
}

// Message returns the human-readable text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}
