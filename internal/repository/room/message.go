package room

type Message struct {
	ID            string `json:"id"`
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"created_at"`
}
