package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps one sliding window per key in process. It is not shared
// between replicas.
type Memory struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	clock   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{windows: make(map[string][]time.Time), clock: time.Now}
}

// NewMemoryWithClock lets tests move time forward.
func NewMemoryWithClock(clock func() time.Time) *Memory {
	m := NewMemory()
	m.clock = clock
	return m
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	stamps := prune(m.windows[key], now.Add(-window))

	if len(stamps) >= limit {
		m.windows[key] = stamps
		reset := now.Add(window)
		if len(stamps) > 0 {
			reset = stamps[0].Add(window)
		}
		return Result{Allowed: false, Limit: limit, ResetAt: reset}, nil
	}

	stamps = append(stamps, now)
	m.windows[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// prune drops timestamps at or before cutoff. stamps is kept in arrival order.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
