package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/skillforge/watchroom/internal/repository/room"
)

const (
	joinRoomMissing = -1
	joinRoomFull    = 0
	joinActive      = 1
	joinCreated     = 2
	joinReactivated = 3
	joinUserTaken   = 4
	joinRemoved     = 5
)

// JoinParticipant resolves the (room, user) pair to a single row: an active
// row is returned as is, an offline one is re-activated and a new one is
// created otherwise. An existing row is only handed out when
// params.RejoinParticipantID names it (room.ErrParticipantExists) and never
// once it was removed (room.ErrParticipantRemoved). Re-activation and creation
// are refused with room.ErrRoomFull when active occupancy has reached the
// room capacity.
func (r repo) JoinParticipant(ctx context.Context, params *room.JoinParticipantParams) (room.JoinParticipantResponse, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getRoomKey(params.RoomID),
		r.getParticipantsKey(params.RoomID),
		r.getUserParticipantKey(params.RoomID, params.UserID),
	}
	res, err := r.rc.EvalSha(ctx, r.joinScript, keys,
		participantKeyPrefix,
		params.ParticipantID,
		params.UserID,
		params.Username,
		r.boolToField(params.IsModerator),
		params.JoinedAt,
		r.ttlSeconds(),
		params.RoomID,
		params.RejoinParticipantID,
	).Slice()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.JoinParticipantResponse{}, err
	}

	if len(res) != 2 {
		err := fmt.Errorf("unexpected join script result: %v", res)
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.JoinParticipantResponse{}, err
	}

	code, _ := res[0].(int64)
	participantID, _ := res[1].(string)
	switch code {
	case joinRoomMissing:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.JoinParticipantResponse{}, room.ErrRoomNotFound
	case joinRoomFull:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomFull)
		return room.JoinParticipantResponse{}, room.ErrRoomFull
	case joinUserTaken:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantExists)
		return room.JoinParticipantResponse{}, room.ErrParticipantExists
	case joinRemoved:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantRemoved)
		return room.JoinParticipantResponse{}, room.ErrParticipantRemoved
	}

	participant, err := r.GetParticipant(ctx, participantID)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.JoinParticipantResponse{}, err
	}

	return room.JoinParticipantResponse{
		Participant: participant,
		Created:     code == joinCreated,
		Reactivated: code == joinReactivated,
	}, nil
}

func (r repo) GetParticipant(ctx context.Context, participantID string) (room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"participant_id": participantID,
	})
	fields, err := r.rc.HGetAll(ctx, r.getParticipantKey(participantID)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Participant{}, err
	}

	if len(fields) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.Participant{}, room.ErrParticipantNotFound
	}

	return r.participantFromFields(participantID, fields), nil
}

func (r repo) participantFromFields(participantID string, fields map[string]string) room.Participant {
	return room.Participant{
		ID:          participantID,
		RoomID:      fields["room_id"],
		UserID:      fields["user_id"],
		Username:    fields["username"],
		JoinedAt:    r.fieldToInt64(fields["joined_at"]),
		LeftAt:      r.fieldToInt64(fields["left_at"]),
		IsModerator: r.fieldToBool(fields["is_moderator"]),
		Presence:    room.Presence(fields["presence"]),
		RemovedAt:   r.fieldToInt64(fields["removed_at"]),
	}
}

// GetParticipants returns the room's participants in join order, offline
// rows included.
func (r repo) GetParticipants(ctx context.Context, roomID string) ([]room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
	})
	participantIDs, err := r.rc.ZRange(ctx, r.getParticipantsKey(roomID), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getParticipantKey(participantID)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	participants := make([]room.Participant, 0, len(participantIDs))
	for i, participantID := range participantIDs {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		participants = append(participants, r.participantFromFields(participantID, fields))
	}

	return participants, nil
}

// UpdateParticipantPresence reports whether the presence changed. Moving an
// offline participant back to online or away is refused with
// room.ErrRoomFull when the room is at capacity and with
// room.ErrParticipantRemoved once the participant was removed.
func (r repo) UpdateParticipantPresence(ctx context.Context, params *room.UpdateParticipantPresenceParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getParticipantKey(params.ParticipantID),
		r.getRoomKey(params.RoomID),
		r.getParticipantsKey(params.RoomID),
	}
	res, err := r.rc.EvalSha(ctx, r.presenceScript, keys,
		string(params.Presence),
		params.UpdatedAt,
		participantKeyPrefix,
	).Int()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	switch res {
	case -1:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return false, room.ErrParticipantNotFound
	case -2:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantRemoved)
		return false, room.ErrParticipantRemoved
	case 0:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomFull)
		return false, room.ErrRoomFull
	case 2:
		return false, nil
	}

	return true, nil
}

// RemoveParticipant takes the participant offline for good: later joins and
// presence changes for the row are refused.
func (r repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	res, err := r.rc.EvalSha(ctx, r.removeScript, []string{r.getParticipantKey(params.ParticipantID)},
		params.RemovedAt,
	).Int()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if res == -1 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	return nil
}

func (r repo) UpdateParticipantIsModerator(ctx context.Context, params *room.UpdateParticipantIsModeratorParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getParticipantKey(params.ParticipantID)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if cmd.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	if err := r.rc.HSet(ctx, key, "is_moderator", params.IsModerator).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
