package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Allower decides whether one more event for key fits into the window.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// SlidingWindow is a Redis sorted-set sliding window limiter. Every call
// records an event, so rejected attempts keep counting against the caller.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
	now    func() time.Time
}

// Allow registers an event for key and reports whether it is within max.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	clock := l.now
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	redisKey := l.Prefix + key
	reset := now.Add(window)

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, reset, fmt.Errorf("ratelimit: %w", err)
	}

	if first := oldest.Val(); len(first) == 1 {
		reset = time.Unix(0, int64(first[0].Score)).Add(window)
	}
	current := int(count.Val())
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return current <= max, remaining, reset, nil
}
