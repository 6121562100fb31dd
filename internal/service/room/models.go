package room

import "github.com/skillforge/watchroom/internal/repository/room"

type (
	Room        = room.Room
	Participant = room.Participant
	Message     = room.Message
	Video       = room.Video
	Settings    = room.Settings
	Presence    = room.Presence
)

// RoomState is everything a client needs to render a room. Messages are the
// most recent ones, oldest first.
type RoomState struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}
