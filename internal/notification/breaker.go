package notification

import (
	"context"
	"log/slog"

	"leasecover/pkg/platform/circuit"
)

// Breaker sends through primary and records every outcome. Once the breaker
// opens, failed primary attempts are handed to fallback instead of being
// reported, until enough consecutive successes close it again.
type Breaker struct {
	primary  Notifier
	fallback Notifier
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewBreaker(primary, fallback Notifier, breaker *circuit.Breaker, logger *slog.Logger) *Breaker {
	return &Breaker{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (b *Breaker) SendInvitation(ctx context.Context, inv Invitation) error {
	return b.call(ctx,
		func(n Notifier) error { return n.SendInvitation(ctx, inv) })
}

func (b *Breaker) NotifyAllPaymentsCompleted(ctx context.Context, p PaymentsCompleted) error {
	return b.call(ctx,
		func(n Notifier) error { return n.NotifyAllPaymentsCompleted(ctx, p) })
}

func (b *Breaker) call(ctx context.Context, send func(Notifier) error) error {
	err := send(b.primary)
	if err == nil {
		if _, change := b.breaker.RecordSuccess(); change.Closed {
			b.logger.InfoContext(ctx, "notification circuit closed", "breaker", b.breaker.Name())
		}
		return nil
	}

	useFallback, change := b.breaker.RecordFailure()
	if change.Opened {
		b.logger.WarnContext(ctx, "notification circuit opened", "breaker", b.breaker.Name(), "error", err)
	}
	if !useFallback || b.fallback == nil {
		return err
	}
	return send(b.fallback)
}
