package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript applies one consume atomically.
// KEYS[1] points counter, KEYS[2] block marker.
// ARGV[1] points, ARGV[2] window ms, ARGV[3] block ms.
// Returns {consumed, ttl ms}; consumed is -1 when the call is rejected and ttl is the wait.
var consumeScript = redis.NewScript(`
local blocked = redis.call('PTTL', KEYS[2])
if blocked > 0 then
  return {-1, blocked}
end
local consumed = redis.call('INCR', KEYS[1])
if consumed == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
local ttl = redis.call('PTTL', KEYS[1])
if consumed > tonumber(ARGV[1]) then
  local block = tonumber(ARGV[3])
  if block > 0 then
    redis.call('SET', KEYS[2], '1', 'PX', block)
    redis.call('DEL', KEYS[1])
    return {-1, block}
  end
  return {-1, ttl}
end
return {consumed, ttl}
`)

// RedisStore shares buckets between instances through Redis.
type RedisStore struct {
	rdb    redis.Scripter
	prefix string
}

func NewRedisStore(rdb redis.Scripter) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ratelimit"}
}

func (s *RedisStore) keys(key Key) []string {
	base := fmt.Sprintf("%s:%s:%s", s.prefix, key.Class, key.Identifier)
	return []string{base + ":points", base + ":block"}
}

func (s *RedisStore) Consume(ctx context.Context, key Key, rule Rule, now time.Time) (int, time.Time, time.Duration, error) {
	res, err := consumeScript.Run(ctx, s.rdb, s.keys(key),
		rule.Points, rule.Duration.Milliseconds(), rule.BlockDuration.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, 0, fmt.Errorf("consume script: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, 0, fmt.Errorf("consume script returned %d values", len(res))
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if res[0] < 0 {
		if ttl <= 0 {
			ttl = time.Millisecond
		}
		return 0, time.Time{}, ttl, nil
	}
	return int(res[0]), now.Add(ttl), 0, nil
}
