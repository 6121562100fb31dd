package room

import (
	"context"
	"fmt"

	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/pkg/playback"
)

type ChangeVideoParams struct {
	RoomID   string
	SenderID string
	VideoURL string
	Title    string
	Duration float64
}

// ChangeVideo replaces the room video and rewinds it. A waiting room stays
// waiting; any other room is paused at the start of the new video.
func (s service) ChangeVideo(ctx context.Context, params *ChangeVideoParams) (Room, error) {
	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return Room{}, err
	}

	if !canModerate(r, sender) {
		s.logger.InfoContext(ctx, "sender can not change video", "sender_id", params.SenderID)
		return Room{}, ErrPermissionDenied
	}

	if r.Status == playback.StatusEnded {
		return Room{}, ErrRoomEnded
	}

	var status *playback.Status
	if r.Status != playback.StatusWaiting {
		paused := playback.StatusPaused
		status = &paused
	}

	if err := s.roomRepo.UpdateRoomVideo(ctx, &room.UpdateRoomVideoParams{
		RoomID: params.RoomID,
		Video: room.Video{
			URL:      params.VideoURL,
			Title:    s.resolveVideoTitle(ctx, params.VideoURL, params.Title),
			Duration: params.Duration,
		},
		Status:    status,
		UpdatedAt: s.now(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to update room video", "error", err)
		return Room{}, fmt.Errorf("failed to update room video: %w", err)
	}

	updated, err := s.roomRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	s.publishBestEffort(ctx, broker.PlaybackTopic(params.RoomID), broker.TypeRoomUpdated, updated)

	return updated, nil
}
