package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eligo/internal/ratelimit/models"
)

const redisKeyPrefix = "eligo:ratelimit:"

// slidingWindow trims the window, admits the request when there is room and
// returns {allowed, count, oldest_ms}. Scores are unix milliseconds.
//
// ARGV: now, cutoff, limit, member, window.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', key, ARGV[1], ARGV[4])
	redis.call('PEXPIRE', key, ARGV[5])
	count = count + 1
	allowed = 1
end

local oldest = tonumber(ARGV[1])
local first = redis.call('ZRANGE', key, '0', '0', 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

type redisClient interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore shares the sliding window across instances.
type RedisStore struct {
	client redisClient
	now    func() time.Time
}

func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	now := s.now()
	nowMS := now.UnixMilli()
	res, err := slidingWindow.Run(ctx, s.client, []string{redisKeyPrefix + key},
		strconv.FormatInt(nowMS, 10),
		strconv.FormatInt(nowMS-limit.Window.Milliseconds(), 10),
		strconv.Itoa(limit.RequestsPerWindow),
		strconv.FormatInt(now.UnixNano(), 10)+"-"+uuid.NewString(),
		strconv.FormatInt(limit.Window.Milliseconds(), 10),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}

	resetAt := time.UnixMilli(res[2]).Add(limit.Window)
	if res[0] == 0 {
		return denied(limit, resetAt, now), nil
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit.RequestsPerWindow,
		Remaining: limit.RequestsPerWindow - int(res[1]),
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
