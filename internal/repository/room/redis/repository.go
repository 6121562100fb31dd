package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const participantKeyPrefix = "participant:"

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
	ttl    time.Duration

	joinScript     string
	presenceScript string
	removeScript   string
	updateScript   string
}

// NewRepo loads the Lua scripts used for the writes that must stay atomic:
// capacity-checked joins, presence changes, removals and clamped room updates.
func NewRepo(rc *redis.Client, logger *slog.Logger, ttl time.Duration) *repo {
	ctx := context.Background()

	return &repo{
		rc:     rc,
		logger: logger,
		ttl:    ttl,
		joinScript: rc.ScriptLoad(ctx, `
			if redis.call('EXISTS', KEYS[1]) == 0 then
				return {-1, ''}
			end

			local prefix = ARGV[1]
			local existing = redis.call('GET', KEYS[3])
			if existing and redis.call('EXISTS', prefix .. existing) == 0 then
				existing = false
			end
			if existing then
				if redis.call('HEXISTS', prefix .. existing, 'removed_at') == 1 then
					return {5, existing}
				end
				if existing ~= ARGV[9] then
					return {4, existing}
				end
				local presence = redis.call('HGET', prefix .. existing, 'presence')
				if presence ~= 'offline' then
					return {1, existing}
				end
			end

			local capacity = tonumber(redis.call('HGET', KEYS[1], 'max_participants') or '0') or 0
			local active = 0
			for _, id in ipairs(redis.call('ZRANGE', KEYS[2], 0, -1)) do
				local presence = redis.call('HGET', prefix .. id, 'presence')
				if presence and presence ~= 'offline' then
					active = active + 1
				end
			end
			if capacity > 0 and active >= capacity then
				return {0, ''}
			end

			local ttl = tonumber(ARGV[7])
			if existing then
				redis.call('HSET', prefix .. existing, 'presence', 'online')
				redis.call('HDEL', prefix .. existing, 'left_at')
				redis.call('EXPIRE', prefix .. existing, ttl)
				redis.call('EXPIRE', KEYS[3], ttl)
				return {3, existing}
			end

			local id = ARGV[2]
			redis.call('HSET', prefix .. id,
				'room_id', ARGV[8],
				'user_id', ARGV[3],
				'username', ARGV[4],
				'is_moderator', ARGV[5],
				'joined_at', ARGV[6],
				'presence', 'online')
			redis.call('EXPIRE', prefix .. id, ttl)

			local maxScore = redis.call('ZREVRANGE', KEYS[2], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[2], nextScore, id)
			redis.call('EXPIRE', KEYS[2], ttl)
			redis.call('SET', KEYS[3], id, 'EX', ttl)
			return {2, id}
		`).Val(),
		presenceScript: rc.ScriptLoad(ctx, `
			local current = redis.call('HGET', KEYS[1], 'presence')
			if not current then
				return -1
			end
			if ARGV[1] ~= 'offline' and redis.call('HEXISTS', KEYS[1], 'removed_at') == 1 then
				return -2
			end
			if current == ARGV[1] then
				return 2
			end

			if current == 'offline' then
				local prefix = ARGV[3]
				local capacity = tonumber(redis.call('HGET', KEYS[2], 'max_participants') or '0') or 0
				local active = 0
				for _, id in ipairs(redis.call('ZRANGE', KEYS[3], 0, -1)) do
					local presence = redis.call('HGET', prefix .. id, 'presence')
					if presence and presence ~= 'offline' then
						active = active + 1
					end
				end
				if capacity > 0 and active >= capacity then
					return 0
				end
				redis.call('HDEL', KEYS[1], 'left_at')
			end

			if ARGV[1] == 'offline' then
				redis.call('HSET', KEYS[1], 'left_at', ARGV[2])
			end
			redis.call('HSET', KEYS[1], 'presence', ARGV[1])
			return 1
		`).Val(),
		removeScript: rc.ScriptLoad(ctx, `
			local current = redis.call('HGET', KEYS[1], 'presence')
			if not current then
				return -1
			end
			if current ~= 'offline' then
				redis.call('HSET', KEYS[1], 'left_at', ARGV[1])
			end
			redis.call('HSET', KEYS[1], 'presence', 'offline', 'removed_at', ARGV[1])
			return 1
		`).Val(),
		updateScript: rc.ScriptLoad(ctx, `
			if redis.call('EXISTS', KEYS[1]) == 0 then
				return 0
			end
			if redis.call('HGET', KEYS[1], 'status') == 'ended' then
				return -1
			end

			for i = 2, #ARGV, 2 do
				if ARGV[i] == 'playback_seq' then
					local stored = tonumber(redis.call('HGET', KEYS[1], 'playback_seq') or '0') or 0
					if (tonumber(ARGV[i + 1]) or 0) <= stored then
						return 2
					end
				end
			end

			for i = 2, #ARGV, 2 do
				local field = ARGV[i]
				local value = ARGV[i + 1]
				if field == 'current_time' then
					local t = tonumber(value) or 0
					local d = tonumber(redis.call('HGET', KEYS[1], 'video_duration') or '0') or 0
					if t < 0 then
						t = 0
					end
					if d > 0 and t > d then
						t = d
					end
					value = tostring(t)
				end
				redis.call('HSET', KEYS[1], field, value)
			end

			redis.call('EXPIRE', KEYS[1], ARGV[1])
			return 1
		`).Val(),
	}
}
