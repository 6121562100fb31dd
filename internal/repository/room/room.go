package room

import "github.com/skillforge/watchroom/pkg/playback"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Video struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	// Duration is in seconds, zero when unknown.
	Duration float64 `json:"duration,omitempty"`
}

type Settings struct {
	AllowChat         bool    `json:"allow_chat"`
	AutoPlay          bool    `json:"auto_play"`
	SyncThreshold     float64 `json:"sync_threshold"`
	AuthoritativeSeek bool    `json:"authoritative_seek"`
}

type Room struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	HostID       string          `json:"host_id"`
	Visibility   Visibility      `json:"visibility"`
	PasswordHash string          `json:"-"`
	Status       playback.Status `json:"status"`
	// ScheduledStartAt is epoch milliseconds, zero when unscheduled.
	ScheduledStartAt int64    `json:"scheduled_start_at,omitempty"`
	Video            Video    `json:"video"`
	CurrentTime      float64  `json:"current_time"`
	MaxParticipants  int      `json:"max_participants"`
	Settings         Settings `json:"room_settings"`
	CreatedAt        int64    `json:"created_at"`
	UpdatedAt        int64    `json:"updated_at"`
}

func (r Room) HasPassword() bool {
	return r.Visibility == VisibilityPrivate && r.PasswordHash != ""
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
