package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/metrics"
	"github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/pkg/playback"
)

type SendSyncEventParams struct {
	RoomID   string
	SenderID string
	Event    playback.SyncEvent
}

// SendSyncEvent relays a playback intent to the room. The sender must be
// present in the room; while the room is waiting only the host may emit and
// nobody may emit once it has ended. The event is attributed to the sender
// and stamped with the room's next sequence number.
func (s service) SendSyncEvent(ctx context.Context, params *SendSyncEventParams) (playback.SyncEvent, error) {
	ev := params.Event
	if err := ev.Validate(); err != nil {
		metrics.RecordSyncEventRejected("invalid")
		return playback.SyncEvent{}, err
	}

	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		metrics.RecordSyncEventRejected("sender")
		return playback.SyncEvent{}, err
	}

	switch {
	case r.Status == playback.StatusEnded:
		metrics.RecordSyncEventRejected("room_ended")
		return playback.SyncEvent{}, ErrRoomEnded
	case r.Status == playback.StatusWaiting && !isHost(r, sender):
		metrics.RecordSyncEventRejected("controls_locked")
		return playback.SyncEvent{}, ErrControlsLocked
	}

	ev.UserID = sender.UserID
	if ev.Timestamp == 0 {
		ev.Timestamp = s.now()
	}

	// an unstamped event is still relayed; clients fall back to last-event-wins
	ev.Seq = 0
	if seq, err := s.roomRepo.NextSeq(ctx, params.RoomID); err != nil {
		metrics.RecordBestEffortFailure("next_seq")
		s.logger.WarnContext(ctx, "failed to stamp sync event", "error", err)
	} else {
		ev.Seq = seq
	}

	if err := s.publish(ctx, broker.PlaybackTopic(params.RoomID), broker.TypeSyncEvent, ev); err != nil {
		s.logger.InfoContext(ctx, "failed to publish sync event", "error", err)
		return playback.SyncEvent{}, &SendError{Err: err}
	}
	metrics.RecordSyncEventRelayed(string(ev.Type))

	return ev, nil
}

type UpdatePlaybackStateParams struct {
	RoomID      string
	SenderID    string
	CurrentTime float64
	// IsPlaying selects playing or paused; nil leaves the status as is.
	IsPlaying *bool
	// Seq is the seq of the relayed event the snapshot follows. Snapshots
	// older than the stored one are skipped.
	Seq int64
}

// UpdatePlaybackState persists a coarse snapshot of the room timeline. In a
// waiting room only the host may store a position and the status is kept.
// A skipped stale snapshot returns the stored room without an update.
func (s service) UpdatePlaybackState(ctx context.Context, params *UpdatePlaybackStateParams) (Room, error) {
	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return Room{}, err
	}

	var status *playback.Status
	switch r.Status {
	case playback.StatusEnded:
		return Room{}, ErrRoomEnded
	case playback.StatusWaiting:
		if !isHost(r, sender) {
			return Room{}, ErrControlsLocked
		}
	default:
		if params.IsPlaying != nil {
			st := playback.StatusPaused
			if *params.IsPlaying {
				st = playback.StatusPlaying
			}
			status = &st
		}
	}

	if err := s.roomRepo.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomID:      params.RoomID,
		CurrentTime: params.CurrentTime,
		Status:      status,
		UpdatedAt:   s.now(),
		Seq:         params.Seq,
	}); err != nil {
		switch {
		case errors.Is(err, room.ErrRoomEnded):
			return Room{}, ErrRoomEnded
		case errors.Is(err, room.ErrStaleSnapshot):
			s.logger.DebugContext(ctx, "skipped stale snapshot", "seq", params.Seq)
			return s.roomRepo.GetRoom(ctx, params.RoomID)
		}
		s.logger.InfoContext(ctx, "failed to update playback state", "error", err)
		return Room{}, fmt.Errorf("failed to update playback state: %w", err)
	}

	updated, err := s.roomRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	s.publishBestEffort(ctx, broker.PlaybackTopic(params.RoomID), broker.TypeRoomUpdated, updated)

	return updated, nil
}
