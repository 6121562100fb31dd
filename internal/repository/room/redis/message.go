package redis

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/skillforge/watchroom/internal/repository/room"
)

func (r repo) AddMessage(ctx context.Context, params *room.AddMessageParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	data, err := json.Marshal(params.Message)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	pipe := r.rc.TxPipeline()

	key := r.getMessagesKey(params.RoomID)
	pipe.LPush(ctx, key, data)
	if params.Limit > 0 {
		pipe.LTrim(ctx, key, 0, int64(params.Limit-1))
	}
	pipe.Expire(ctx, key, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// GetRecentMessages returns up to limit of the newest messages, oldest first.
func (r repo) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomID,
		"limit":   limit,
	})
	if limit <= 0 {
		return []room.Message{}, nil
	}

	items, err := r.rc.LRange(ctx, r.getMessagesKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	messages := make([]room.Message, 0, len(items))
	for _, item := range items {
		var message room.Message
		if err := json.Unmarshal([]byte(item), &message); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}
	slices.Reverse(messages)

	return messages, nil
}
