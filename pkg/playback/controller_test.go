package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []SyncEvent
	err    error
}

func (e *recordingEmitter) EmitSyncEvent(_ context.Context, ev SyncEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, ev)
	return e.err
}

func (e *recordingEmitter) Events() []SyncEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]SyncEvent(nil), e.events...)
}

type failingPlayer struct {
	*SimulatedPlayer
	seeks int
}

func (p *failingPlayer) SeekTo(float64) error {
	p.seeks++
	return errors.New("player not ready")
}

func newTestController(t *testing.T, userID string, opts ...Option) (*Controller, *SimulatedPlayer, *recordingEmitter, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	player := NewSimulatedPlayer(clock, 600)
	emitter := &recordingEmitter{}
	c := NewController(player, emitter, userID, append([]Option{WithClock(clock)}, opts...)...)

	return c, player, emitter, clock
}

func TestControllerWaitingRoomLocksNonHost(t *testing.T) {
	ctx := context.Background()
	c, player, emitter, _ := newTestController(t, "guest")

	c.HandleSnapshot(ctx, Snapshot{Status: StatusWaiting, HostID: "host"})
	assert.False(t, c.CanControl())
	assert.ErrorIs(t, c.Play(ctx), ErrControlsLocked)
	assert.ErrorIs(t, c.Seek(ctx, 30), ErrControlsLocked)
	assert.ErrorIs(t, c.Pause(ctx), ErrControlsLocked)
	assert.Empty(t, emitter.Events())
	assert.Equal(t, PlayerStateCued, player.GetPlayerState())

	d := c.HandleSyncEvent(ctx, SyncEvent{Type: EventPlay, CurrentTime: 10, UserID: "host"})
	assert.False(t, d.Play, "waiting room holds non-host playback")
	assert.True(t, d.Seek)
	assert.False(t, isPlaying(player))

	c.HandleSnapshot(ctx, Snapshot{Status: StatusPlaying, HostID: "host", CurrentTime: 10})
	assert.True(t, c.CanControl())
	require.NoError(t, c.Pause(ctx))
	require.Len(t, emitter.Events(), 1)
	assert.Equal(t, EventPause, emitter.Events()[0].Type)
}

func TestControllerHostControlsWaitingRoom(t *testing.T) {
	ctx := context.Background()
	c, _, emitter, clock := newTestController(t, "host")

	c.HandleSnapshot(ctx, Snapshot{Status: StatusWaiting, HostID: "host"})
	assert.True(t, c.IsHost())
	require.NoError(t, c.Seek(ctx, 700))

	events := emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventSeek, events[0].Type)
	assert.Equal(t, 600.0, events[0].CurrentTime, "seek is clamped to duration")
	assert.Equal(t, clock.Now().UnixMilli(), events[0].Timestamp)
	assert.Equal(t, "host", events[0].UserID)
}

func TestControllerHostPlayInWaitingRoomSurvivesEcho(t *testing.T) {
	ctx := context.Background()
	c, player, emitter, clock := newTestController(t, "host")

	c.HandleSnapshot(ctx, Snapshot{Status: StatusWaiting, HostID: "host"})
	require.NoError(t, c.Play(ctx))
	require.Len(t, emitter.Events(), 1)
	clock.Advance(2 * time.Second)

	// the server stores the position only and echoes the waiting row back
	d := c.HandleSnapshot(ctx, Snapshot{Status: StatusWaiting, HostID: "host", CurrentTime: 0})
	assert.True(t, d.IsNoop())
	assert.Equal(t, PlayerStatePlaying, player.GetPlayerState())

	guest, guestPlayer, _, _ := newTestController(t, "guest")
	require.NoError(t, guestPlayer.Play())
	d = guest.HandleSnapshot(ctx, Snapshot{Status: StatusWaiting, HostID: "host"})
	assert.True(t, d.Pause, "non-hosts stay held in a waiting room")
	assert.Equal(t, PlayerStatePaused, guestPlayer.GetPlayerState())
}

func TestControllerEndedRoomLocksEveryone(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newTestController(t, "host")

	c.HandleSnapshot(ctx, Snapshot{Status: StatusEnded, HostID: "host"})
	assert.ErrorIs(t, c.Play(ctx), ErrControlsLocked)
}

func TestControllerIgnoresOwnEcho(t *testing.T) {
	ctx := context.Background()
	c, player, _, _ := newTestController(t, "a", WithHost(true))

	d := c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 300, UserID: "a"})
	assert.True(t, d.IsNoop())
	assert.Equal(t, 0.0, player.GetCurrentTime())
}

func TestControllerAppliesRemoteEvents(t *testing.T) {
	ctx := context.Background()
	c, player, emitter, clock := newTestController(t, "b")
	c.HandleSnapshot(ctx, Snapshot{Status: StatusPlaying, HostID: "a", SyncThreshold: 3})
	require.True(t, isPlaying(player))

	clock.Advance(49 * time.Second)
	d := c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 80, UserID: "a"})
	assert.True(t, d.Seek)
	assert.InDelta(t, 80.0, player.GetCurrentTime(), 0.001)

	d = c.HandleSyncEvent(ctx, SyncEvent{Type: EventPause, CurrentTime: 81, UserID: "a"})
	assert.True(t, d.Pause)
	assert.False(t, d.Seek)
	assert.Equal(t, PlayerStatePaused, player.GetPlayerState())

	d = c.HandleSyncEvent(ctx, SyncEvent{Type: EventPause, CurrentTime: 81, UserID: "a"})
	assert.True(t, d.IsNoop())

	assert.Empty(t, emitter.Events(), "remote events are never re-emitted")
}

func TestControllerStaleRejection(t *testing.T) {
	ctx := context.Background()
	c, player, _, _ := newTestController(t, "b", WithStaleRejection())
	c.HandleSnapshot(ctx, Snapshot{Status: StatusPaused, HostID: "a"})

	c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 200, UserID: "a", Seq: 5})
	d := c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 20, UserID: "a", Seq: 4})
	assert.True(t, d.Stale)
	assert.Equal(t, 200.0, player.GetCurrentTime())

	d = c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 20, UserID: "a"})
	assert.False(t, d.Stale, "unstamped events are applied")
	assert.Equal(t, 20.0, player.GetCurrentTime())
}

func TestControllerLastEventWinsByDefault(t *testing.T) {
	ctx := context.Background()
	c, player, _, _ := newTestController(t, "b")
	c.HandleSnapshot(ctx, Snapshot{Status: StatusPaused, HostID: "a"})

	c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 200, UserID: "a", Seq: 5})
	d := c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 20, UserID: "a", Seq: 4})
	assert.False(t, d.Stale)
	assert.Equal(t, 20.0, player.GetCurrentTime())
}

func TestControllerPlayerFailureNotRetried(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	player := &failingPlayer{SimulatedPlayer: NewSimulatedPlayer(clock, 600)}
	c := NewController(player, &recordingEmitter{}, "b", WithClock(clock))
	c.HandleSnapshot(ctx, Snapshot{Status: StatusPaused, HostID: "a"})

	d := c.HandleSyncEvent(ctx, SyncEvent{Type: EventSeek, CurrentTime: 100, UserID: "a"})
	assert.True(t, d.Seek)
	assert.Equal(t, 1, player.seeks)
}

func TestControllerEmitFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	c, player, emitter, _ := newTestController(t, "host", WithHost(true))
	emitter.err = errors.New("socket closed")
	c.HandleSnapshot(ctx, Snapshot{Status: StatusPaused, HostID: "host"})

	require.NoError(t, c.Play(ctx))
	assert.True(t, isPlaying(player))
}

func TestControllerHeartbeat(t *testing.T) {
	c, _, emitter, clock := newTestController(t, "host")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.HandleSnapshot(ctx, Snapshot{Status: StatusPlaying, HostID: "host"})

	done := make(chan struct{})
	go func() {
		c.Heartbeat(ctx, 5*time.Second)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return len(emitter.Events()) == 1 }, time.Second, 5*time.Millisecond)

	ev := emitter.Events()[0]
	assert.Equal(t, EventSync, ev.Type)
	assert.InDelta(t, 5.0, ev.CurrentTime, 0.001)

	cancel()
	<-done
}

func TestControllerLocalOnlySettings(t *testing.T) {
	c, player, emitter, _ := newTestController(t, "b")

	require.NoError(t, c.SetVolume(40))
	require.NoError(t, c.Mute())
	assert.Equal(t, 40, player.Volume())
	assert.True(t, player.IsMuted())
	assert.ErrorIs(t, c.SetVolume(101), ErrInvalidVolume)
	assert.Empty(t, emitter.Events())
}
