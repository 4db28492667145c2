package api

import (
	"errors"
	"fmt"
	"net/http"
)

// API package errors.
var (
	// ErrNotFound indicates the backend returned 404.
	ErrNotFound = errors.New("api: not found")

	// ErrUnauthorized indicates the session token was rejected.
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrUnknownWorker indicates a worker name with no configured URL.
	ErrUnknownWorker = errors.New("api: unknown worker")
)

// Error is a failed backend call. Message is the human-readable text the
// backend sent, or the status text when it sent none.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// UserMessage returns the message to display.
func (e *Error) UserMessage() string {
	return e.Message
}

// Detail describes the failed call for logs.
func (e *Error) Detail() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}
