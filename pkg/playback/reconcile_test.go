package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconcileThreshold(t *testing.T) {
	opts := Options{Threshold: 3}

	for _, d := range []float64{0, 0.5, 1, 2.99, 3} {
		for _, sign := range []float64{1, -1} {
			local := LocalState{Playing: true, CurrentTime: 100 + sign*d}
			got := Reconcile(local, SyncEvent{Type: EventSync, CurrentTime: 100}, opts)
			assert.False(t, got.Seek, "drift %v must not seek", sign*d)
		}
	}

	for _, d := range []float64{3.01, 4, 30, 500} {
		for _, sign := range []float64{1, -1} {
			local := LocalState{Playing: true, CurrentTime: 600 + sign*d}
			got := Reconcile(local, SyncEvent{Type: EventSeek, CurrentTime: 600}, opts)
			assert.True(t, got.Seek, "drift %v must seek", sign*d)
			assert.Equal(t, 600.0, got.SeekTo)
		}
	}
}

func TestReconcileDefaultThreshold(t *testing.T) {
	got := Reconcile(LocalState{CurrentTime: 12}, SyncEvent{Type: EventSeek, CurrentTime: 10}, Options{})
	assert.False(t, got.Seek)

	got = Reconcile(LocalState{CurrentTime: 14}, SyncEvent{Type: EventSeek, CurrentTime: 10}, Options{})
	assert.True(t, got.Seek)
}

func TestReconcilePlayPause(t *testing.T) {
	tests := []struct {
		name    string
		playing bool
		event   EventType
		want    Decision
	}{
		{name: "play while paused", playing: false, event: EventPlay, want: Decision{Play: true}},
		{name: "play while playing", playing: true, event: EventPlay, want: Decision{}},
		{name: "pause while playing", playing: true, event: EventPause, want: Decision{Pause: true}},
		{name: "pause while paused", playing: false, event: EventPause, want: Decision{}},
		{name: "sync while paused", playing: false, event: EventSync, want: Decision{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(LocalState{Playing: tt.playing, CurrentTime: 5}, SyncEvent{Type: tt.event, CurrentTime: 5}, Options{Threshold: 3})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileLaggingSeek(t *testing.T) {
	opts := Options{Threshold: 3}
	ev := SyncEvent{Type: EventSeek, CurrentTime: 80, UserID: "a"}

	b := Reconcile(LocalState{Playing: true, CurrentTime: 49}, ev, opts)
	assert.True(t, b.Seek)
	assert.Equal(t, 80.0, b.SeekTo)
	assert.Equal(t, 31.0, b.Drift)

	c := Reconcile(LocalState{Playing: true, CurrentTime: 81}, ev, opts)
	assert.False(t, c.Seek)
	assert.Equal(t, 1.0, c.Drift)
	assert.True(t, c.IsNoop())
}

func TestReconcileAuthoritativeSeek(t *testing.T) {
	opts := Options{Threshold: 3, AuthoritativeSeek: true}

	got := Reconcile(LocalState{Playing: true, CurrentTime: 81}, SyncEvent{Type: EventSeek, CurrentTime: 80}, opts)
	assert.True(t, got.Seek)

	got = Reconcile(LocalState{Playing: true, CurrentTime: 81}, SyncEvent{Type: EventSync, CurrentTime: 80}, opts)
	assert.False(t, got.Seek, "only seek events are authoritative")
}

func TestReconcileSnapshot(t *testing.T) {
	now := time.UnixMilli(1_700_000_100_000)
	opts := Options{Threshold: 3}

	t.Run("playing room extrapolates", func(t *testing.T) {
		s := Snapshot{Status: StatusPlaying, CurrentTime: 40, UpdatedAt: now.Add(-20 * time.Second).UnixMilli()}
		got := ReconcileSnapshot(LocalState{}, s, opts, now)
		assert.True(t, got.Play)
		assert.True(t, got.Seek)
		assert.InDelta(t, 60.0, got.SeekTo, 0.001)
	})

	t.Run("paused room keeps position", func(t *testing.T) {
		s := Snapshot{Status: StatusPaused, CurrentTime: 40, UpdatedAt: now.Add(-20 * time.Second).UnixMilli()}
		got := ReconcileSnapshot(LocalState{Playing: true, CurrentTime: 41}, s, opts, now)
		assert.True(t, got.Pause)
		assert.False(t, got.Seek)
	})
}

func TestSyncEventValidate(t *testing.T) {
	assert.NoError(t, SyncEvent{Type: EventPlay, CurrentTime: 0}.Validate())
	assert.ErrorIs(t, SyncEvent{Type: "rewind"}.Validate(), ErrInvalidEvent)
	assert.ErrorIs(t, SyncEvent{Type: EventSeek, CurrentTime: -1}.Validate(), ErrInvalidEvent)
}
