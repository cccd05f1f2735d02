package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "leasecover:ratelimit:"

// Redis keeps each window in a sorted set scored by arrival time in
// milliseconds, so every replica shares one count.
type Redis struct {
	client redis.Cmdable
	clock  func() time.Time
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, clock: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := r.clock()
	k := redisKeyPrefix + key
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		pipe.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit window: %w", err)
	}

	reset := now.Add(window)
	if first := oldest.Val(); len(first) > 0 {
		reset = time.UnixMilli(int64(first[0].Score)).Add(window)
	}

	count := int(card.Val())
	if count > limit {
		// The rejected request must not hold a slot.
		if err := r.client.ZRem(ctx, k, member).Err(); err != nil {
			return Result{}, fmt.Errorf("release rate limit slot: %w", err)
		}
		return Result{Allowed: false, Limit: limit, ResetAt: reset}, nil
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - count, ResetAt: reset}, nil
}
