package playback

type PlayerState int

// Values follow the YouTube IFrame player states.
const (
	PlayerStateUnstarted PlayerState = -1
	PlayerStateEnded     PlayerState = 0
	PlayerStatePlaying   PlayerState = 1
	PlayerStatePaused    PlayerState = 2
	PlayerStateBuffering PlayerState = 3
	PlayerStateCued      PlayerState = 5
)

func (s PlayerState) String() string {
	switch s {
	case PlayerStateUnstarted:
		return "unstarted"
	case PlayerStateEnded:
		return "ended"
	case PlayerStatePlaying:
		return "playing"
	case PlayerStatePaused:
		return "paused"
	case PlayerStateBuffering:
		return "buffering"
	case PlayerStateCued:
		return "cued"
	default:
		return "unknown"
	}
}

// Player is the video element a Controller owns exclusively.
type Player interface {
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	GetCurrentTime() float64
	GetDuration() float64
	GetPlayerState() PlayerState
	SetVolume(volume int) error
	Mute() error
	UnMute() error
}

func isPlaying(p Player) bool {
	switch p.GetPlayerState() {
	case PlayerStatePlaying, PlayerStateBuffering:
		return true
	}
	return false
}
