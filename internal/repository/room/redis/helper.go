package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) getParticipantsKey(roomID string) string {
	return "room:" + roomID + ":participants"
}

func (r repo) getParticipantKey(participantID string) string {
	return participantKeyPrefix + participantID
}

func (r repo) getUserParticipantKey(roomID, userID string) string {
	return "room:" + roomID + ":user:" + userID
}

func (r repo) getMessagesKey(roomID string) string {
	return "room:" + roomID + ":messages"
}

func (r repo) getSeqKey(roomID string) string {
	return "room:" + roomID + ":seq"
}

func (r repo) ttlSeconds() int64 {
	return int64(r.ttl.Seconds())
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) fieldToBool(field string) bool {
	return field == "1" || field == "true"
}

func (r repo) fieldToInt(field string) int {
	i, _ := strconv.Atoi(field)
	return i
}

func (r repo) fieldToInt64(field string) int64 {
	i, _ := strconv.ParseInt(field, 10, 64)
	return i
}

func (r repo) fieldToFloat64(field string) float64 {
	f, _ := strconv.ParseFloat(field, 64)
	return f
}

func (r repo) boolToField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
