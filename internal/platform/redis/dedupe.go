package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "leasecover:dedupe:"

// Deduper remembers keys for a TTL with SETNX. It is a fast filter in front
// of the database; the transactional check stays authoritative.
type Deduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewDeduper(client redis.Cmdable, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

// FirstDelivery claims key and reports whether this call was the first.
func (d *Deduper) FirstDelivery(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim dedupe key: %w", err)
	}
	return ok, nil
}

// Forget releases key so a failed delivery can be retried.
func (d *Deduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, dedupeKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release dedupe key: %w", err)
	}
	return nil
}
