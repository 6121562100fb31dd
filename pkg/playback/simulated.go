package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrInvalidVolume = errors.New("volume must be within [0, 100]")

// SimulatedPlayer is a headless Player whose position advances with its clock.
type SimulatedPlayer struct {
	clock    clockwork.Clock
	duration float64

	mu       sync.Mutex
	state    PlayerState
	position float64
	anchor   time.Time
	volume   int
	muted    bool
}

func NewSimulatedPlayer(clock clockwork.Clock, duration float64) *SimulatedPlayer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &SimulatedPlayer{
		clock:    clock,
		duration: duration,
		state:    PlayerStateCued,
		volume:   100,
	}
}

func (p *SimulatedPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PlayerStatePlaying {
		return nil
	}
	if p.duration > 0 && p.position >= p.duration {
		p.position = 0
	}
	p.state = PlayerStatePlaying
	p.anchor = p.clock.Now()
	return nil
}

func (p *SimulatedPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = p.currentTime()
	p.state = PlayerStatePaused
	return nil
}

func (p *SimulatedPlayer) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = clamp(seconds, p.duration)
	p.anchor = p.clock.Now()
	return nil
}

func (p *SimulatedPlayer) GetCurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.currentTime()
}

func (p *SimulatedPlayer) currentTime() float64 {
	if p.state != PlayerStatePlaying {
		return p.position
	}

	return clamp(p.position+p.clock.Since(p.anchor).Seconds(), p.duration)
}

func (p *SimulatedPlayer) GetDuration() float64 {
	return p.duration
}

func (p *SimulatedPlayer) GetPlayerState() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PlayerStatePlaying && p.duration > 0 && p.currentTime() >= p.duration {
		return PlayerStateEnded
	}
	return p.state
}

func (p *SimulatedPlayer) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return ErrInvalidVolume
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
	return nil
}

func (p *SimulatedPlayer) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.volume
}

func (p *SimulatedPlayer) Mute() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.muted = true
	return nil
}

func (p *SimulatedPlayer) UnMute() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.muted = false
	return nil
}

func (p *SimulatedPlayer) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.muted
}
