// Package worker runs background jobs for the policy module.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ExpiryService expires active policies whose term has ended.
type ExpiryService interface {
	ExpireDuePolicies(ctx context.Context, at time.Time) (int, error)
}

// Expirer sweeps due policies on a fixed interval.
type Expirer struct {
	service  ExpiryService
	interval time.Duration
	logger   *slog.Logger
	clock    func() time.Time
}

type ExpirerOption func(*Expirer)

func WithLogger(logger *slog.Logger) ExpirerOption {
	return func(e *Expirer) {
		e.logger = logger
	}
}

// WithClock overrides the wall clock used as the sweep instant.
func WithClock(clock func() time.Time) ExpirerOption {
	return func(e *Expirer) {
		e.clock = clock
	}
}

func NewExpirer(service ExpiryService, interval time.Duration, opts ...ExpirerOption) *Expirer {
	e := &Expirer{
		service:  service,
		interval: interval,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged; the next tick retries.
func (e *Expirer) Run(ctx context.Context) error {
	if e.interval <= 0 {
		return errors.New("expiry interval must be positive")
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			e.Sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep runs one expiry pass and returns how many policies expired.
func (e *Expirer) Sweep(ctx context.Context) int {
	at := e.clock().UTC()
	expired, err := e.service.ExpireDuePolicies(ctx, at)
	if err != nil {
		if ctx.Err() != nil {
			return expired
		}
		e.logger.ErrorContext(ctx, "policy expiry sweep failed",
			"error", err,
			"expired", expired,
		)
	}
	if expired > 0 {
		e.logger.InfoContext(ctx, "policies expired", "count", expired, "at", at)
	}
	return expired
}
