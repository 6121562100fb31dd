package room

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomEnded           = errors.New("room has ended")
	ErrParticipantExists   = errors.New("participant already exists")
	ErrParticipantRemoved  = errors.New("participant was removed")
	ErrStaleSnapshot       = errors.New("snapshot is older than the stored one")
)
