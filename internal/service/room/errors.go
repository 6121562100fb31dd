package room

import (
	"errors"

	"github.com/skillforge/watchroom/internal/repository/room"
)

var (
	ErrWrongPassword = errors.New("wrong password")
	ErrRoomFull      = room.ErrRoomFull
)

// JoinError is a refused join surfaced inline to the user.
type JoinError struct {
	Reason error
}

func (e *JoinError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrRoomFull):
		return "Room is full"
	case errors.Is(e.Reason, ErrWrongPassword):
		return "Wrong password"
	case errors.Is(e.Reason, ErrRoomEnded):
		return "Room has ended"
	case errors.Is(e.Reason, ErrAlreadyJoined):
		return "User is already in the room"
	case errors.Is(e.Reason, ErrParticipantRemoved):
		return "Removed from the room"
	}
	return "Unable to join room: " + e.Reason.Error()
}

func (e *JoinError) Unwrap() error {
	return e.Reason
}

// LoadError is a failure to fetch room state, retryable by the user.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "failed to load room: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SendError is a chat message or sync event that could not be transmitted.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "failed to send: " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}
