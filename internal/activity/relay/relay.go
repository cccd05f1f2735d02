// Package relay publishes the policy activity log to Kafka.
//
// policy_activities doubles as a transactional outbox: every mutation appends
// its rows inside the policy unit of work, and the relay later claims the
// unpublished rows, produces them and stamps published_at. Delivery is
// at-least-once; consumers dedupe on the activity id.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"leasecover/internal/policy/models"
)

// Record is one claimed outbox row.
type Record struct {
	Seq      int64
	Activity *models.Activity
}

// Source claims unpublished activities. publish runs while the rows are
// held; they are marked published only when it returns nil.
type Source interface {
	ClaimBatch(ctx context.Context, limit int, publish func(ctx context.Context, batch []Record) error) (int, error)
}

// Publisher delivers a batch to the broker, all or nothing.
type Publisher interface {
	Publish(ctx context.Context, batch []Record) error
}

const defaultBatchSize = 100

// Relay moves activities from a Source to a Publisher.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func New(source Source, publisher Publisher, interval time.Duration, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// RelayOnce claims and publishes a single batch.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.source.ClaimBatch(ctx, r.batchSize, r.publisher.Publish)
	r.metrics.observeBatch(n, time.Since(start), err)
	return n, err
}

// Drain relays full batches until the backlog is smaller than one batch.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n < r.batchSize || ctx.Err() != nil {
			return total, nil
		}
	}
}

// Run drains the outbox on every tick until ctx is cancelled. A failed
// batch stays unpublished and is retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("relay interval must be positive")
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := r.Drain(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "activity relay failed",
					"error", err,
					"published", n,
				)
			} else if n > 0 {
				r.logger.DebugContext(ctx, "activities relayed", "count", n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
