package models

import (
	"strings"

	dErrors "leasecover/pkg/domain-errors"
)

// Status is the policy's primary lifecycle state.
type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusCollectingInfo        Status = "COLLECTING_INFO"
	StatusUnderInvestigation    Status = "UNDER_INVESTIGATION"
	StatusInvestigationRejected Status = "INVESTIGATION_REJECTED"
	StatusPendingApproval       Status = "PENDING_APPROVAL"
	StatusContractPending       Status = "CONTRACT_PENDING"
	StatusContractUploaded      Status = "CONTRACT_UPLOADED"
	StatusContractSigned        Status = "CONTRACT_SIGNED"
	StatusActive                Status = "ACTIVE"
	StatusExpired               Status = "EXPIRED"
	StatusCancelled             Status = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusCollectingInfo,
	StatusUnderInvestigation,
	StatusInvestigationRejected,
	StatusPendingApproval,
	StatusContractPending,
	StatusContractUploaded,
	StatusContractSigned,
	StatusActive,
	StatusExpired,
	StatusCancelled,
}

// forwardEdges is the complete state machine minus cancellation, which is
// legal from every non-terminal state.
var forwardEdges = map[Status][]Status{
	StatusDraft:                 {StatusCollectingInfo},
	StatusCollectingInfo:        {StatusUnderInvestigation},
	StatusUnderInvestigation:    {StatusPendingApproval, StatusInvestigationRejected},
	StatusInvestigationRejected: {StatusContractPending},
	StatusPendingApproval:       {StatusContractPending},
	StatusContractPending:       {StatusContractUploaded},
	StatusContractUploaded:      {StatusContractSigned},
	StatusContractSigned:        {StatusActive},
	StatusActive:                {StatusExpired},
}

var statusRank = func() map[Status]int {
	m := make(map[Status]int, len(AllStatuses))
	for i, s := range AllStatuses {
		m[s] = i
	}
	return m
}()

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports EXPIRED and CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// CanTransitionTo reports whether to is reachable from s in one edge.
func (s Status) CanTransitionTo(to Status) bool {
	if to == StatusCancelled {
		return s.IsValid() && !s.IsTerminal()
	}
	for _, next := range forwardEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Reached reports whether s is at or beyond milestone on the main path.
// Cancelled policies have reached nothing past the point they were stopped,
// so callers must check IsTerminal separately where that matters.
func (s Status) Reached(milestone Status) bool {
	if s == StatusCancelled {
		return false
	}
	if s == StatusInvestigationRejected && milestone == StatusPendingApproval {
		return false
	}
	return statusRank[s] >= statusRank[milestone]
}

// CollectsActorInput reports the phases in which actors may still be added,
// replaced or invited.
func (s Status) CollectsActorInput() bool {
	return s == StatusDraft || s == StatusCollectingInfo
}

// ParseStatus accepts the upper-case wire form.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown policy status %q", raw)
	}
	return s, nil
}

// GuarantorType selects which guarantor actors a policy requires.
type GuarantorType string

const (
	GuarantorNone         GuarantorType = "NONE"
	GuarantorJointObligor GuarantorType = "JOINT_OBLIGOR"
	GuarantorAval         GuarantorType = "AVAL"
	GuarantorBoth         GuarantorType = "BOTH"
)

func (g GuarantorType) IsValid() bool {
	switch g {
	case GuarantorNone, GuarantorJointObligor, GuarantorAval, GuarantorBoth:
		return true
	}
	return false
}

// Requires reports whether the policy needs at least one ready actor of type t
// before investigation can start.
func (g GuarantorType) Requires(t ActorType) bool {
	switch t {
	case ActorLandlord, ActorTenant:
		return true
	case ActorJointObligor:
		return g == GuarantorJointObligor || g == GuarantorBoth
	case ActorAval:
		return g == GuarantorAval || g == GuarantorBoth
	}
	return false
}

// Allows reports whether an actor of type t may be attached at all.
func (g GuarantorType) Allows(t ActorType) bool {
	return g.Requires(t)
}

// CancellationReason is the mandatory reason code for a cancellation.
type CancellationReason string

const (
	CancelClientRequest           CancellationReason = "CLIENT_REQUEST"
	CancelNonPayment              CancellationReason = "NON_PAYMENT"
	CancelFraud                   CancellationReason = "FRAUD"
	CancelDocumentationIncomplete CancellationReason = "DOCUMENTATION_INCOMPLETE"
	CancelLandlordRequest         CancellationReason = "LANDLORD_REQUEST"
	CancelTenantRequest           CancellationReason = "TENANT_REQUEST"
	CancelOther                   CancellationReason = "OTHER"
)

func (r CancellationReason) IsValid() bool {
	switch r {
	case CancelClientRequest, CancelNonPayment, CancelFraud, CancelDocumentationIncomplete,
		CancelLandlordRequest, CancelTenantRequest, CancelOther:
		return true
	}
	return false
}
