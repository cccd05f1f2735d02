// Package notification delivers invitations and payment notices. Delivery is
// always attempted after the owning transaction commits; failures are
// recorded by the caller and never roll back domain state.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	id "leasecover/pkg/domain"
	"leasecover/pkg/email"
)

// Invitation carries everything needed to render an actor invitation.
type Invitation struct {
	PolicyID       id.PolicyID
	PolicyNumber   string
	ActorID        id.ActorID
	ActorType      string
	RecipientEmail string
	RecipientName  string
	Token          string
	ExpiresAt      time.Time
	InitiatedBy    string
}

// PaymentsCompleted is sent once, when a policy first becomes fully paid.
type PaymentsCompleted struct {
	PolicyID     id.PolicyID
	PolicyNumber string
	Total        decimal.Decimal
	Payments     int
	CompletedAt  time.Time
}

type Notifier interface {
	SendInvitation(ctx context.Context, inv Invitation) error
	NotifyAllPaymentsCompleted(ctx context.Context, n PaymentsCompleted) error
}

// LogNotifier writes notifications to the structured log. Used in local runs.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendInvitation(ctx context.Context, inv Invitation) error {
	n.logger.InfoContext(ctx, "invitation sent",
		"policy_id", inv.PolicyID.String(),
		"policy_number", inv.PolicyNumber,
		"actor_id", inv.ActorID.String(),
		"actor_type", inv.ActorType,
		"recipient", email.RecipientName(inv.RecipientEmail, inv.RecipientName),
		"expires_at", inv.ExpiresAt,
	)
	return nil
}

func (n *LogNotifier) NotifyAllPaymentsCompleted(ctx context.Context, p PaymentsCompleted) error {
	n.logger.InfoContext(ctx, "all payments completed",
		"policy_id", p.PolicyID.String(),
		"policy_number", p.PolicyNumber,
		"total", p.Total.String(),
		"payments", p.Payments,
	)
	return nil
}

// Recorder keeps every notification in memory. Failures can be injected per
// recipient to exercise partial delivery.
type Recorder struct {
	mu          sync.Mutex
	invitations []Invitation
	completions []PaymentsCompleted
	failFor     map[string]error
	failAll     error
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: make(map[string]error)}
}

// FailFor makes invitations to recipientEmail fail with err.
func (r *Recorder) FailFor(recipientEmail string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[email.Normalize(recipientEmail)] = err
}

// FailAll makes every delivery fail with err; nil restores delivery.
func (r *Recorder) FailAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAll = err
}

func (r *Recorder) SendInvitation(_ context.Context, inv Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return r.failAll
	}
	if err, ok := r.failFor[email.Normalize(inv.RecipientEmail)]; ok {
		return err
	}
	r.invitations = append(r.invitations, inv)
	return nil
}

func (r *Recorder) NotifyAllPaymentsCompleted(_ context.Context, p PaymentsCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return r.failAll
	}
	r.completions = append(r.completions, p)
	return nil
}

func (r *Recorder) Invitations() []Invitation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invitation(nil), r.invitations...)
}

func (r *Recorder) Completions() []PaymentsCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PaymentsCompleted(nil), r.completions...)
}
