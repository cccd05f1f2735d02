package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

type PayerType string

const (
	PayerTenant       PayerType = "TENANT"
	PayerLandlord     PayerType = "LANDLORD"
	PayerJointObligor PayerType = "JOINT_OBLIGOR"
	PayerAval         PayerType = "AVAL"
	PayerCompany      PayerType = "COMPANY"
)

func (p PayerType) IsValid() bool {
	switch p {
	case PayerTenant, PayerLandlord, PayerJointObligor, PayerAval, PayerCompany:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCard     PaymentMethod = "CARD"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCash     PaymentMethod = "CASH"
	MethodOther    PaymentMethod = "OTHER"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCard, MethodTransfer, MethodCash, MethodOther:
		return true
	}
	return false
}

// DefaultTaxRate is the VAT applied when a payment request names none.
var DefaultTaxRate = decimal.RequireFromString("0.16")

// Payment is one payment obligation of a policy.
type Payment struct {
	ID                id.PaymentID    `json:"id"`
	PolicyID          id.PolicyID     `json:"policy_id"`
	PayerType         PayerType       `json:"payer_type"`
	Description       string          `json:"description,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PaymentStatus   `json:"status"`
	Method            PaymentMethod   `json:"method,omitempty"`
	GatewaySessionID  string          `json:"gateway_session_id,omitempty"`
	CheckoutURL       string          `json:"checkout_url,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	LastEventID       string          `json:"-"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	FailedAt          *time.Time      `json:"failed_at,omitempty"`
	RefundedAt        *time.Time      `json:"refunded_at,omitempty"`
	RefundReason      string          `json:"refund_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ComputeTax splits a subtotal into tax and total, rounded to cents.
func ComputeTax(subtotal, rate decimal.Decimal) (tax, total decimal.Decimal) {
	tax = subtotal.Mul(rate).Round(2)
	return tax, subtotal.Add(tax).Round(2)
}

// FullyPaid is true iff there is at least one payment and every payment is
// COMPLETED.
func FullyPaid(payments []*Payment) bool {
	if len(payments) == 0 {
		return false
	}
	for _, p := range payments {
		if p.Status != PaymentCompleted {
			return false
		}
	}
	return true
}

// GatewayEventKind is the closed set of webhook events the gateway delivers.
type GatewayEventKind string

const (
	EventSessionCompleted GatewayEventKind = "session.completed"
	EventSessionExpired   GatewayEventKind = "session.expired"
	EventPaymentSucceeded GatewayEventKind = "payment.succeeded"
	EventPaymentFailed    GatewayEventKind = "payment.failed"
)

// Outcome maps an event kind to the payment status it asserts.
func (k GatewayEventKind) Outcome() (PaymentStatus, bool) {
	switch k {
	case EventSessionCompleted, EventPaymentSucceeded:
		return PaymentCompleted, true
	case EventSessionExpired, EventPaymentFailed:
		return PaymentFailed, true
	}
	return "", false
}

// GatewayEvent is a verified webhook event. SessionID correlates it with a
// Payment row.
type GatewayEvent struct {
	ID                string           `json:"id"`
	Kind              GatewayEventKind `json:"type"`
	SessionID         string           `json:"session_id"`
	ExternalReference string           `json:"external_reference,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

func (e *GatewayEvent) Normalize() {
	e.ID = strings.TrimSpace(e.ID)
	e.SessionID = strings.TrimSpace(e.SessionID)
	e.Kind = GatewayEventKind(strings.ToLower(strings.TrimSpace(string(e.Kind))))
}

func (e *GatewayEvent) Validate() error {
	if e.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "event id is required")
	}
	if e.SessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "session_id is required")
	}
	if _, ok := e.Kind.Outcome(); !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported event type %q", e.Kind)
	}
	return nil
}

// ApplyGatewayOutcome moves the payment toward target. COMPLETED and REFUNDED
// are absorbing for gateway events, so a late "expired" never regresses a
// completed payment. Returns false when nothing changed.
func (p *Payment) ApplyGatewayOutcome(target PaymentStatus, eventID, reference string, now time.Time) bool {
	if p.Status == PaymentCompleted || p.Status == PaymentRefunded || p.Status == target {
		return false
	}
	p.Status = target
	p.LastEventID = eventID
	p.UpdatedAt = now
	switch target {
	case PaymentCompleted:
		p.PaidAt = &now
		p.FailedAt = nil
		if reference != "" {
			p.ExternalReference = reference
		}
	case PaymentFailed:
		p.FailedAt = &now
	}
	return true
}

// CanMarkPaidManually allows staff to settle any open or failed payment.
func (p *Payment) CanMarkPaidManually() error {
	switch p.Status {
	case PaymentCompleted:
		return dErrors.New(dErrors.CodeStateConflict, "payment is already completed")
	case PaymentRefunded:
		return dErrors.New(dErrors.CodeStateConflict, "payment was refunded")
	}
	return nil
}

func (p *Payment) ApplyManualPayment(method PaymentMethod, reference string, now time.Time) {
	p.Status = PaymentCompleted
	p.Method = method
	p.ExternalReference = reference
	p.PaidAt = &now
	p.FailedAt = nil
	p.UpdatedAt = now
}

func (p *Payment) CanRefund() error {
	if p.Status != PaymentCompleted {
		return dErrors.Newf(dErrors.CodeStateConflict, "only completed payments can be refunded, payment is %s", p.Status)
	}
	return nil
}

func (p *Payment) ApplyRefund(reason string, now time.Time) {
	p.Status = PaymentRefunded
	p.RefundReason = reason
	p.RefundedAt = &now
	p.UpdatedAt = now
}
