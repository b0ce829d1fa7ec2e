// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces limiter hashes.
const redisKeyPrefix = "ratelimit:"

// bumpScript applies the fixed-window rule inside Redis so that the
// read-reset-increment sequence is atomic. Times are unix milliseconds.
var bumpScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local last = redis.call('HGET', KEYS[1], 'last_reset')
if (not last) or (tonumber(last) <= now - period) then
	redis.call('HSET', KEYS[1], 'last_reset', now, 'count', 1)
	redis.call('PEXPIRE', KEYS[1], period)
	return {now, 1}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {tonumber(last), count}
`)

// RedisStore keeps counters as Redis hashes that expire with their window.
type RedisStore struct {
	client redis.Scripter
}

// NewRedisStore creates a [RedisStore].
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

// Bump atomically records one hit on key.
func (repository *RedisStore) Bump(context context.Context, key string, period time.Duration, now time.Time) (Window, error) {
	values, err := bumpScript.Run(context, repository.client,
		[]string{redisKeyPrefix + key}, now.UnixMilli(), period.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("redis_ratelimit_bump_failed: %w", err)
	}
	if len(values) != 2 {
		return Window{}, fmt.Errorf("redis_ratelimit_bump_failed: unexpected reply %v", values)
	}

	return Window{
		LastReset: time.UnixMilli(values[0]).UTC(),
		Count:     int(values[1]),
	}, nil
}
