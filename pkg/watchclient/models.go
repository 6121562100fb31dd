package watchclient

import (
	"encoding/json"

	"github.com/skillforge/watchroom/pkg/playback"
)

type Video struct {
	URL      string  `json:"url"`
	Title    string  `json:"title,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type Settings struct {
	AllowChat         bool    `json:"allow_chat"`
	AutoPlay          bool    `json:"auto_play"`
	SyncThreshold     float64 `json:"sync_threshold"`
	AuthoritativeSeek bool    `json:"authoritative_seek"`
}

type Room struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	HostID           string          `json:"host_id"`
	Visibility       string          `json:"visibility"`
	Status           playback.Status `json:"status"`
	ScheduledStartAt int64           `json:"scheduled_start_at,omitempty"`
	Video            Video           `json:"video"`
	CurrentTime      float64         `json:"current_time"`
	MaxParticipants  int             `json:"max_participants"`
	Settings         Settings        `json:"room_settings"`
	CreatedAt        int64           `json:"created_at"`
	UpdatedAt        int64           `json:"updated_at"`
}

func (r Room) Snapshot() playback.Snapshot {
	return playback.Snapshot{
		Status:            r.Status,
		CurrentTime:       r.CurrentTime,
		SyncThreshold:     r.Settings.SyncThreshold,
		AuthoritativeSeek: r.Settings.AuthoritativeSeek,
		HostID:            r.HostID,
		UpdatedAt:         r.UpdatedAt,
	}
}

type Participant struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	JoinedAt    int64  `json:"joined_at"`
	LeftAt      int64  `json:"left_at,omitempty"`
	IsModerator bool   `json:"is_moderator"`
	Presence    string `json:"presence"`
}

type Message struct {
	ID            string `json:"id"`
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"created_at"`
}

type RoomState struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

type CreateRoomRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	UserID            string  `json:"user_id"`
	Username          string  `json:"username"`
	Visibility        string  `json:"visibility,omitempty"`
	Password          string  `json:"password,omitempty"`
	ScheduledStartAt  int64   `json:"scheduled_start_at,omitempty"`
	VideoURL          string  `json:"video_url"`
	VideoTitle        string  `json:"video_title,omitempty"`
	VideoDuration     float64 `json:"video_duration,omitempty"`
	MaxParticipants   int     `json:"max_participants,omitempty"`
	AllowChat         *bool   `json:"allow_chat,omitempty"`
	AutoPlay          bool    `json:"auto_play,omitempty"`
	SyncThreshold     float64 `json:"sync_threshold,omitempty"`
	AuthoritativeSeek bool    `json:"authoritative_seek,omitempty"`
}

type CreateRoomResponse struct {
	Room        Room        `json:"room"`
	Participant Participant `json:"participant"`
	AuthToken   string      `json:"auth_token"`
}

type JoinRoomRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	// AuthToken from an earlier join is required to take back the user's row.
	AuthToken string `json:"auth_token,omitempty"`
}

type JoinRoomResponse struct {
	Participant Participant `json:"participant"`
	AuthToken   string      `json:"auth_token"`
	Rejoined    bool        `json:"rejoined"`
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomStatePayload struct {
	RoomState   RoomState   `json:"room_state"`
	Participant Participant `json:"participant"`
}

type errorPayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
