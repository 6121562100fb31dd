package watchclient

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("room not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSessionClosed = errors.New("session closed")
)

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watchroom: %d: %s", e.Status, e.Message)
}

// JoinError is a refused join. Reason is the text to show the user, such as
// "Room is full" or "Wrong password".
type JoinError struct {
	Status int
	Reason string
}

func (e *JoinError) Error() string {
	return e.Reason
}

// LoadError means the room state could not be fetched after all retries.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "failed to load room: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
