package room

import "github.com/skillforge/watchroom/pkg/playback"

type SetRoomParams struct {
	Room
}

type UpdateRoomStatusParams struct {
	RoomID    string
	Status    playback.Status
	UpdatedAt int64
}

type UpdatePlaybackStateParams struct {
	RoomID      string
	CurrentTime float64
	// Status is left untouched when nil.
	Status    *playback.Status
	UpdatedAt int64
	// Seq, when set, refuses the write with ErrStaleSnapshot unless it is
	// newer than the seq of the last stored snapshot.
	Seq int64
}

type UpdateRoomVideoParams struct {
	RoomID    string
	Video     Video
	Status    *playback.Status
	UpdatedAt int64
}

type JoinParticipantParams struct {
	RoomID string
	// ParticipantID is used only when a new row is created.
	ParticipantID string
	// RejoinParticipantID proves ownership of an existing row for the user.
	// Without it an existing row is never handed out.
	RejoinParticipantID string
	UserID              string
	Username            string
	IsModerator         bool
	JoinedAt            int64
}

type JoinParticipantResponse struct {
	Participant Participant
	Created     bool
	Reactivated bool
}

type UpdateParticipantPresenceParams struct {
	RoomID        string
	ParticipantID string
	Presence      Presence
	UpdatedAt     int64
}

type RemoveParticipantParams struct {
	ParticipantID string
	RemovedAt     int64
}

type UpdateParticipantIsModeratorParams struct {
	ParticipantID string
	IsModerator   bool
}

type AddMessageParams struct {
	Message
	// Limit bounds the retained history.
	Limit int
}
