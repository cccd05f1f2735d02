package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "leasecover/pkg/domain"
)

// PropertyType classifies the leased property.
type PropertyType string

const (
	PropertyHouse      PropertyType = "HOUSE"
	PropertyApartment  PropertyType = "APARTMENT"
	PropertyCommercial PropertyType = "COMMERCIAL"
	PropertyOffice     PropertyType = "OFFICE"
	PropertyOther      PropertyType = "OTHER"
)

func (p PropertyType) IsValid() bool {
	switch p {
	case PropertyHouse, PropertyApartment, PropertyCommercial, PropertyOffice, PropertyOther:
		return true
	}
	return false
}

// Property describes what is being leased.
type Property struct {
	Address     string       `json:"address"`
	Type        PropertyType `json:"type"`
	Description string       `json:"description,omitempty"`
}

// Terms are the financial terms of the lease.
type Terms struct {
	RentAmount           decimal.Decimal `json:"rent_amount"`
	DepositAmount        decimal.Decimal `json:"deposit_amount"`
	ContractLengthMonths int             `json:"contract_length_months"`
	StartDate            time.Time       `json:"start_date"`
	EndDate              time.Time       `json:"end_date"`
	TotalPrice           decimal.Decimal `json:"total_price"`
}

// Policy is the root aggregate of a rental guarantee.
//
// Invariants:
//   - Number is unique across all policies
//   - Status only changes through an edge of the state machine (see status.go)
//   - PaymentsCompletedAt is set at most once
//   - Policies are never deleted; CANCELLED and EXPIRED are terminal
type Policy struct {
	ID            id.PolicyID   `json:"id"`
	Number        string        `json:"policy_number"`
	Status        Status        `json:"status"`
	GuarantorType GuarantorType `json:"guarantor_type"`
	Property      Property      `json:"property"`
	Terms         Terms         `json:"terms"`
	CreatedBy     id.UserID     `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	InvitationsSentAt        *time.Time `json:"invitations_sent_at,omitempty"`
	InvestigationStartedAt   *time.Time `json:"investigation_started_at,omitempty"`
	InvestigationCompletedAt *time.Time `json:"investigation_completed_at,omitempty"`
	ApprovedAt               *time.Time `json:"approved_at,omitempty"`
	ApprovedBy               *id.UserID `json:"approved_by,omitempty"`
	ContractUploadedAt       *time.Time `json:"contract_uploaded_at,omitempty"`
	ContractSignedAt         *time.Time `json:"contract_signed_at,omitempty"`
	ActivatedAt              *time.Time `json:"activated_at,omitempty"`
	ExpiredAt                *time.Time `json:"expired_at,omitempty"`
	CancelledAt              *time.Time `json:"cancelled_at,omitempty"`
	PaymentsCompletedAt      *time.Time `json:"payments_completed_at,omitempty"`

	CancellationReason  CancellationReason `json:"cancellation_reason,omitempty"`
	CancellationComment string             `json:"cancellation_comment,omitempty"`
}

// IsExpiredAt reports whether an active policy's term has ended.
func (p *Policy) IsExpiredAt(now time.Time) bool {
	return p.Status == StatusActive && !p.Terms.EndDate.IsZero() && !p.Terms.EndDate.After(now)
}

// Touch stamps UpdatedAt.
func (p *Policy) Touch(now time.Time) {
	p.UpdatedAt = now
}

// NewPolicyNumber builds POL-YYYYMMDD-XXXXXX with six random upper-case hex
// characters. Uniqueness is enforced by the store; callers retry on conflict.
func NewPolicyNumber(now time.Time) (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate policy number: %w", err)
	}
	return fmt.Sprintf("POL-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b[:]))), nil
}

// EndDateFor derives the lease end date from its start and length.
func EndDateFor(start time.Time, months int) time.Time {
	return start.AddDate(0, months, 0)
}

// PolicyFilter narrows ListPolicies.
type PolicyFilter struct {
	Statuses  []Status
	CreatedBy *id.UserID
	Limit     int
	Offset    int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Clamp applies default and maximum page sizes.
func (f *PolicyFilter) Clamp() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
