package room

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

type Participant struct {
	ID          string   `json:"id"`
	RoomID      string   `json:"room_id"`
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	JoinedAt    int64    `json:"joined_at"`
	LeftAt      int64    `json:"left_at,omitempty"`
	IsModerator bool     `json:"is_moderator"`
	Presence    Presence `json:"presence"`
	RemovedAt   int64    `json:"removed_at,omitempty"`
}

// Active participants count against room capacity.
func (p Participant) Active() bool {
	return p.Presence != PresenceOffline
}

func (p Participant) Removed() bool {
	return p.RemovedAt > 0
}
