package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrControlsLocked = errors.New("playback controls are locked")

// Emitter transmits a locally originated event to the room. Delivery is
// fire-and-forget.
type Emitter interface {
	EmitSyncEvent(ctx context.Context, ev SyncEvent) error
}

type Controller struct {
	player  Player
	emitter Emitter
	userID  string
	clock   clockwork.Clock
	logger  *slog.Logger

	mu          sync.Mutex
	isHost      bool
	status      Status
	opts        Options
	rejectStale bool
	lastSeq     int64
}

type Option func(*Controller)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithStaleRejection drops remote events whose seq is not newer than the
// last one applied. Unstamped events are always applied.
func WithStaleRejection() Option {
	return func(c *Controller) {
		c.rejectStale = true
	}
}

func WithHost(isHost bool) Option {
	return func(c *Controller) {
		c.isHost = isHost
	}
}

func WithOptions(opts Options) Option {
	return func(c *Controller) {
		c.opts = opts
	}
}

func NewController(player Player, emitter Emitter, userID string, opts ...Option) *Controller {
	c := &Controller{
		player:  player,
		emitter: emitter,
		userID:  userID,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		status:  StatusWaiting,
		opts:    Options{Threshold: DefaultSyncThreshold},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *Controller) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isHost
}

// CanControl reports whether local play/pause/seek are allowed. Non-hosts are
// held while the room is waiting and nobody controls an ended room.
func (c *Controller) CanControl() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.canControl()
}

func (c *Controller) canControl() bool {
	switch c.status {
	case StatusEnded:
		return false
	case StatusWaiting:
		return c.isHost
	default:
		return true
	}
}

func (c *Controller) Play(ctx context.Context) error {
	if !c.CanControl() {
		return ErrControlsLocked
	}

	if err := c.player.Play(); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	c.emit(ctx, EventPlay, c.player.GetCurrentTime())
	return nil
}

func (c *Controller) Pause(ctx context.Context) error {
	if !c.CanControl() {
		return ErrControlsLocked
	}

	if err := c.player.Pause(); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	c.emit(ctx, EventPause, c.player.GetCurrentTime())
	return nil
}

func (c *Controller) Seek(ctx context.Context, seconds float64) error {
	if !c.CanControl() {
		return ErrControlsLocked
	}

	seconds = clamp(seconds, c.player.GetDuration())
	if err := c.player.SeekTo(seconds); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	c.emit(ctx, EventSeek, seconds)
	return nil
}

// Volume and mute are local to this client and never broadcast.

func (c *Controller) SetVolume(volume int) error {
	return c.player.SetVolume(volume)
}

func (c *Controller) Mute() error {
	return c.player.Mute()
}

func (c *Controller) UnMute() error {
	return c.player.UnMute()
}

func (c *Controller) emit(ctx context.Context, eventType EventType, currentTime float64) {
	ev := SyncEvent{
		Type:        eventType,
		Timestamp:   c.clock.Now().UnixMilli(),
		CurrentTime: currentTime,
		UserID:      c.userID,
	}

	if err := c.emitter.EmitSyncEvent(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "failed to emit sync event", "type", eventType, "error", err)
	}
}

// HandleSyncEvent reconciles the local player against a remote event.
func (c *Controller) HandleSyncEvent(ctx context.Context, ev SyncEvent) Decision {
	if ev.UserID == c.userID {
		return Decision{}
	}

	c.mu.Lock()
	if ev.Seq > 0 {
		if c.rejectStale && ev.Seq <= c.lastSeq {
			c.mu.Unlock()
			c.logger.DebugContext(ctx, "dropped stale sync event", "seq", ev.Seq, "last_seq", c.lastSeq)
			return Decision{Stale: true}
		}
		if ev.Seq > c.lastSeq {
			c.lastSeq = ev.Seq
		}
	}
	opts := c.opts
	held := c.status == StatusEnded || (c.status == StatusWaiting && !c.isHost)
	c.mu.Unlock()

	d := Reconcile(c.localState(), ev, opts)
	if held {
		d.Play = false
	}

	c.apply(ctx, d)
	return d
}

// HandleSnapshot adopts the room's status and settings and reconciles the
// player against the persisted position. The host of a waiting room keeps its
// player as is: the row only echoes what the host itself stored.
func (c *Controller) HandleSnapshot(ctx context.Context, s Snapshot) Decision {
	c.mu.Lock()
	if s.Status.Valid() {
		c.status = s.Status
	}
	if s.SyncThreshold > 0 {
		c.opts.Threshold = s.SyncThreshold
	}
	c.opts.AuthoritativeSeek = s.AuthoritativeSeek
	if s.HostID != "" {
		c.isHost = s.HostID == c.userID
	}
	opts := c.opts
	preview := c.status == StatusWaiting && c.isHost
	c.mu.Unlock()

	if preview {
		return Decision{}
	}

	d := ReconcileSnapshot(c.localState(), s, opts, c.clock.Now())
	c.apply(ctx, d)
	return d
}

// Heartbeat emits periodic sync events while this client is the host and its
// player is playing. It returns when ctx is done.
func (c *Controller) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.mu.Lock()
			active := c.isHost && c.status == StatusPlaying
			c.mu.Unlock()

			if active && isPlaying(c.player) {
				c.emit(ctx, EventSync, c.player.GetCurrentTime())
			}
		}
	}
}

func (c *Controller) localState() LocalState {
	return LocalState{
		Playing:     isPlaying(c.player),
		CurrentTime: c.player.GetCurrentTime(),
	}
}

// apply does not retry: the next event or local action re-attempts.
func (c *Controller) apply(ctx context.Context, d Decision) {
	if d.Seek {
		if err := c.player.SeekTo(d.SeekTo); err != nil {
			c.logger.WarnContext(ctx, "failed to seek player", "seek_to", d.SeekTo, "error", err)
		}
	}
	if d.Play {
		if err := c.player.Play(); err != nil {
			c.logger.WarnContext(ctx, "failed to play player", "error", err)
		}
	}
	if d.Pause {
		if err := c.player.Pause(); err != nil {
			c.logger.WarnContext(ctx, "failed to pause player", "error", err)
		}
	}
}

func clamp(seconds, duration float64) float64 {
	if seconds < 0 {
		return 0
	}
	if duration > 0 && seconds > duration {
		return duration
	}
	return seconds
}
