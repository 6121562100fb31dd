package playback

import (
	"math"
	"time"
)

type LocalState struct {
	Playing     bool
	CurrentTime float64
}

type Options struct {
	// Threshold is the maximum drift in seconds left uncorrected.
	Threshold float64
	// AuthoritativeSeek makes seek events jump regardless of drift.
	AuthoritativeSeek bool
}

func (o Options) threshold() float64 {
	if o.Threshold <= 0 {
		return DefaultSyncThreshold
	}
	return o.Threshold
}

// Decision is what a controller does to its player in response to one remote
// event. The zero value is a no-op.
type Decision struct {
	Play   bool    `json:"play"`
	Pause  bool    `json:"pause"`
	Seek   bool    `json:"seek"`
	SeekTo float64 `json:"seek_to"`
	Drift  float64 `json:"drift"`
	// Stale is set when the event was dropped for carrying an old seq.
	Stale bool `json:"stale"`
}

func (d Decision) IsNoop() bool {
	return !d.Play && !d.Pause && !d.Seek
}

// Reconcile compares a remote event with the local player. The last event
// received wins: no ordering information is consulted here.
func Reconcile(local LocalState, ev SyncEvent, opts Options) Decision {
	d := Decision{Drift: math.Abs(local.CurrentTime - ev.CurrentTime)}

	switch ev.Type {
	case EventPlay:
		d.Play = !local.Playing
	case EventPause:
		d.Pause = local.Playing
	}

	if d.Drift > opts.threshold() || (opts.AuthoritativeSeek && ev.Type == EventSeek && d.Drift > 0) {
		d.Seek = true
		d.SeekTo = ev.CurrentTime
	}

	return d
}

// ReconcileSnapshot applies a persisted room row. While the room is playing
// the stored position is advanced by the time elapsed since it was written.
func ReconcileSnapshot(local LocalState, s Snapshot, opts Options, now time.Time) Decision {
	target := s.CurrentTime
	if s.Status == StatusPlaying && s.UpdatedAt > 0 {
		elapsed := now.Sub(time.UnixMilli(s.UpdatedAt)).Seconds()
		if elapsed > 0 {
			target += elapsed
		}
	}

	d := Decision{Drift: math.Abs(local.CurrentTime - target)}
	if s.Status == StatusPlaying {
		d.Play = !local.Playing
	} else {
		d.Pause = local.Playing
	}

	if d.Drift > opts.threshold() {
		d.Seek = true
		d.SeekTo = target
	}

	return d
}
