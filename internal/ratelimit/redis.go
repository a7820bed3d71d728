package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements a fixed-window rate limiter backed by Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow checks whether the request should be allowed in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if l == nil || l.client == nil {
		return Result{}, errors.New("ratelimit: redis client not initialized")
	}
	if window <= 0 {
		window = time.Second
	}
	winSecs := int64(window / time.Second)
	if winSecs <= 0 {
		winSecs = 1
	}
	win := now.Unix() / winSecs
	reset := time.Unix((win+1)*winSecs, 0).UTC()

	redisKey := l.prefix + ":" + key + ":" + strconv.FormatInt(win, 10)
	ttlSeconds := winSecs + 1

	current, errEval := redisIncrScript.Run(ctx, l.client, []string{redisKey}, ttlSeconds).Int64()
	if errEval != nil {
		return Result{}, errEval
	}
	if current > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	remaining := limit - int(current)
	return Result{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

var _ Limiter = (*RedisLimiter)(nil)
