package access

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// consumeScript mirrors ApplyPremium inside one EVAL.
// KEYS[1] quota hash; ARGV limit, now (unix ms), next reset (unix ms).
var consumeScript = redis.NewScript(`
local usage = tonumber(redis.call('HGET', KEYS[1], 'usage') or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset_at') or '0')
local now = tonumber(ARGV[2])
local lapsed = reset > 0 and now > reset
if lapsed then
  usage = 0
end
if usage >= tonumber(ARGV[1]) then
  return {0, usage, reset}
end
usage = usage + 1
if reset == 0 or lapsed then
  reset = tonumber(ARGV[3])
end
redis.call('HSET', KEYS[1], 'usage', usage, 'reset_at', reset)
redis.call('PEXPIREAT', KEYS[1], reset + 86400000)
return {1, usage, reset}
`)

type RedisQuotaStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisQuotaStore(rdb redis.UniversalClient) *RedisQuotaStore {
	return &RedisQuotaStore{rdb: rdb, prefix: "assistant:premium:"}
}

func (s *RedisQuotaStore) key(userId uuid.UUID) string {
	return s.prefix + userId.String()
}

func (s *RedisQuotaStore) ConsumePremium(ctx context.Context, userId uuid.UUID, limit int, now time.Time) (entity.QuotaResult, error) {
	next := NextUTCMidnight(now)
	vals, err := consumeScript.Run(ctx, s.rdb, []string{s.key(userId)}, limit, now.UnixMilli(), next.UnixMilli()).Int64Slice()
	if err != nil {
		return entity.QuotaResult{}, fmt.Errorf("redis quota script: %w", err)
	}
	if len(vals) != 3 {
		return entity.QuotaResult{}, fmt.Errorf("redis quota script: unexpected reply %v", vals)
	}
	return entity.QuotaResult{
		Admitted: vals[0] == 1,
		Usage:    int(vals[1]),
		ResetAt:  millisToTime(vals[2]),
	}, nil
}

func (s *RedisQuotaStore) PremiumUsage(ctx context.Context, userId uuid.UUID) (int, *time.Time, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(userId), "usage", "reset_at").Result()
	if err != nil {
		return 0, nil, err
	}
	usage := toInt64(vals[0])
	return int(usage), millisToTime(toInt64(vals[1])), nil
}

func millisToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func toInt64(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
