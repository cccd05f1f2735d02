// Package ratelimit bounds how often a client may call public endpoints.
// Windows are sliding: a request counts against the limit for exactly one
// window after it was made.
package ratelimit

import (
	"context"
	"time"
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until a slot frees up.
func (r Result) RetryAfter(now time.Time) int {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return int((r.ResetAt.Sub(now) + time.Second - 1) / time.Second)
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
