package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/skillforge/watchroom/internal/repository/room"
	omitnilpointers "github.com/skillforge/watchroom/pkg/omit-nil-pointers"
	"github.com/skillforge/watchroom/pkg/playback"
)

func (r repo) roomFields(params *room.SetRoomParams) map[string]any {
	var scheduledStartAt *int64
	if params.ScheduledStartAt > 0 {
		scheduledStartAt = &params.ScheduledStartAt
	}
	var description, passwordHash, videoTitle *string
	if params.Description != "" {
		description = &params.Description
	}
	if params.PasswordHash != "" {
		passwordHash = &params.PasswordHash
	}
	if params.Video.Title != "" {
		videoTitle = &params.Video.Title
	}

	return omitnilpointers.OmitNilPointers(map[string]any{
		"name":               params.Name,
		"description":        description,
		"host_id":            params.HostID,
		"visibility":         string(params.Visibility),
		"password_hash":      passwordHash,
		"status":             string(params.Status),
		"scheduled_start_at": scheduledStartAt,
		"video_url":          params.Video.URL,
		"video_title":        videoTitle,
		"video_duration":     params.Video.Duration,
		"current_time":       params.CurrentTime,
		"max_participants":   params.MaxParticipants,
		"allow_chat":         params.Settings.AllowChat,
		"auto_play":          params.Settings.AutoPlay,
		"sync_threshold":     params.Settings.SyncThreshold,
		"authoritative_seek": params.Settings.AuthoritativeSeek,
		"created_at":         params.CreatedAt,
		"updated_at":         params.UpdatedAt,
	})
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	key := r.getRoomKey(params.ID)
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, r.roomFields(params))
	pipe.Expire(ctx, key, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	fields, err := r.rc.HGetAll(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	if len(fields) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	return room.Room{
		ID:               roomID,
		Name:             fields["name"],
		Description:      fields["description"],
		HostID:           fields["host_id"],
		Visibility:       room.Visibility(fields["visibility"]),
		PasswordHash:     fields["password_hash"],
		Status:           playback.Status(fields["status"]),
		ScheduledStartAt: r.fieldToInt64(fields["scheduled_start_at"]),
		Video: room.Video{
			URL:      fields["video_url"],
			Title:    fields["video_title"],
			Duration: r.fieldToFloat64(fields["video_duration"]),
		},
		CurrentTime:     r.fieldToFloat64(fields["current_time"]),
		MaxParticipants: r.fieldToInt(fields["max_participants"]),
		Settings: room.Settings{
			AllowChat:         r.fieldToBool(fields["allow_chat"]),
			AutoPlay:          r.fieldToBool(fields["auto_play"]),
			SyncThreshold:     r.fieldToFloat64(fields["sync_threshold"]),
			AuthoritativeSeek: r.fieldToBool(fields["authoritative_seek"]),
		},
		CreatedAt: r.fieldToInt64(fields["created_at"]),
		UpdatedAt: r.fieldToInt64(fields["updated_at"]),
	}, nil
}

// updateRoom writes field/value pairs in order; the room must exist and must
// not have ended.
func (r repo) updateRoom(ctx context.Context, roomID string, pairs ...any) error {
	args := append([]any{r.ttlSeconds()}, pairs...)
	res, err := r.rc.EvalSha(ctx, r.updateScript, []string{r.getRoomKey(roomID)}, args...).Int()
	if err != nil {
		return err
	}

	switch res {
	case 0:
		return room.ErrRoomNotFound
	case -1:
		return room.ErrRoomEnded
	case 2:
		return room.ErrStaleSnapshot
	}

	return nil
}

func (r repo) UpdateRoomStatus(ctx context.Context, params *room.UpdateRoomStatusParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.updateRoom(ctx, params.RoomID,
		"status", string(params.Status),
		"updated_at", params.UpdatedAt,
	); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) UpdatePlaybackState(ctx context.Context, params *room.UpdatePlaybackStateParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	var pairs []any
	if params.Seq > 0 {
		pairs = append(pairs, "playback_seq", params.Seq)
	}
	pairs = append(pairs, "current_time", params.CurrentTime)
	if params.Status != nil {
		pairs = append(pairs, "status", string(*params.Status))
	}
	pairs = append(pairs, "updated_at", params.UpdatedAt)

	if err := r.updateRoom(ctx, params.RoomID, pairs...); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) UpdateRoomVideo(ctx context.Context, params *room.UpdateRoomVideoParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pairs := []any{
		"video_url", params.Video.URL,
		"video_title", params.Video.Title,
		"video_duration", params.Video.Duration,
		"current_time", 0,
	}
	if params.Status != nil {
		pairs = append(pairs, "status", string(*params.Status))
	}
	pairs = append(pairs, "updated_at", params.UpdatedAt)

	if err := r.updateRoom(ctx, params.RoomID, pairs...); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, roomID string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	participantIDs, err := r.rc.ZRange(ctx, r.getParticipantsKey(roomID), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	pipe := r.rc.TxPipeline()
	for _, participantID := range participantIDs {
		userID, err := r.rc.HGet(ctx, r.getParticipantKey(participantID), "user_id").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return err
		}
		if userID != "" {
			pipe.Del(ctx, r.getUserParticipantKey(roomID, userID))
		}
		pipe.Del(ctx, r.getParticipantKey(participantID))
	}
	pipe.Del(ctx,
		r.getParticipantsKey(roomID),
		r.getMessagesKey(roomID),
		r.getSeqKey(roomID),
	)
	removed := pipe.Del(ctx, r.getRoomKey(roomID))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if removed.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	return nil
}

func (r repo) NextSeq(ctx context.Context, roomID string) (int64, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	pipe := r.rc.TxPipeline()

	key := r.getSeqKey(roomID)
	seq := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, err
	}

	return seq.Val(), nil
}
