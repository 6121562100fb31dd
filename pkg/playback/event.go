// Package playback holds the client side of watch-room synchronization: the
// sync event wire format, drift reconciliation and the Controller that keeps
// one local player in line with the room.
package playback

import (
	"errors"
	"fmt"
	"math"
)

type EventType string

const (
	EventPlay  EventType = "play"
	EventPause EventType = "pause"
	EventSeek  EventType = "seek"
	EventSync  EventType = "sync"
)

func (t EventType) Valid() bool {
	switch t {
	case EventPlay, EventPause, EventSeek, EventSync:
		return true
	}
	return false
}

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusPlaying, StatusPaused, StatusEnded:
		return true
	}
	return false
}

// DefaultSyncThreshold is the tolerated drift in seconds when a room does not
// configure one.
const DefaultSyncThreshold = 3.0

var ErrInvalidEvent = errors.New("invalid sync event")

// SyncEvent is the broadcast body exchanged between controllers. It is never
// persisted.
type SyncEvent struct {
	Type EventType `json:"type"`
	// Timestamp is the emission wall clock in epoch milliseconds.
	Timestamp   int64   `json:"timestamp"`
	CurrentTime float64 `json:"currentTime"`
	UserID      string  `json:"userId"`
	// Seq is stamped by the server per room. Zero means unstamped.
	Seq int64 `json:"seq,omitempty"`
}

func (e SyncEvent) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if math.IsNaN(e.CurrentTime) || math.IsInf(e.CurrentTime, 0) || e.CurrentTime < 0 {
		return fmt.Errorf("%w: current time %v out of range", ErrInvalidEvent, e.CurrentTime)
	}
	return nil
}

// Snapshot is the subset of the persisted room row a controller reconciles
// against.
type Snapshot struct {
	Status            Status  `json:"status"`
	CurrentTime       float64 `json:"current_time"`
	SyncThreshold     float64 `json:"sync_threshold"`
	AuthoritativeSeek bool    `json:"authoritative_seek"`
	HostID            string  `json:"host_id"`
	// UpdatedAt is the epoch milliseconds of the last position write.
	UpdatedAt int64 `json:"updated_at"`
}
