package models

import (
	"math"
	"time"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
	VerdictHighRisk Verdict = "HIGH_RISK"
)

func (v Verdict) IsValid() bool {
	return v == VerdictApproved || v == VerdictRejected || v == VerdictHighRisk
}

// Target is the policy status a completed investigation drives to.
func (v Verdict) Target() Status {
	if v == VerdictRejected {
		return StatusInvestigationRejected
	}
	return StatusPendingApproval
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

func (r RiskLevel) IsValid() bool { return r == RiskLow || r == RiskMedium || r == RiskHigh }

type LandlordDecision string

const (
	LandlordProceed LandlordDecision = "PROCEED"
	LandlordReject  LandlordDecision = "REJECT"
)

func (d LandlordDecision) IsValid() bool { return d == LandlordProceed || d == LandlordReject }

// InvestigationState is derived from the verdict, not stored.
type InvestigationState string

const (
	InvestigationNotStarted InvestigationState = "NOT_STARTED"
	InvestigationInProgress InvestigationState = "IN_PROGRESS"
	InvestigationCompleted  InvestigationState = "COMPLETED"
)

// Investigation is the single background check of a policy.
//
// Invariants:
//   - At most one per policy; never re-opened
//   - Verdict is written once
//   - LandlordDecision is written at most once, and only after a REJECTED verdict
type Investigation struct {
	ID       id.InvestigationID `json:"id"`
	PolicyID id.PolicyID        `json:"policy_id"`

	StartedBy id.UserID `json:"started_by"`
	StartedAt time.Time `json:"started_at"`

	Verdict           Verdict    `json:"verdict,omitempty"`
	RiskLevel         RiskLevel  `json:"risk_level,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	RejectedBy        *id.UserID `json:"rejected_by,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CompletedBy       *id.UserID `json:"completed_by,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ResponseTimeHours *int       `json:"response_time_hours,omitempty"`

	LandlordDecision  LandlordDecision `json:"landlord_decision,omitempty"`
	LandlordNotes     string           `json:"landlord_notes,omitempty"`
	LandlordDecidedAt *time.Time       `json:"landlord_decided_at,omitempty"`
	LandlordOverride  bool             `json:"landlord_override"`
}

// NewInvestigation opens the investigation of a policy.
func NewInvestigation(policyID id.PolicyID, startedBy id.UserID, now time.Time) *Investigation {
	return &Investigation{
		ID:        id.NewInvestigationID(),
		PolicyID:  policyID,
		StartedBy: startedBy,
		StartedAt: now,
	}
}

func (i *Investigation) State() InvestigationState {
	if i == nil {
		return InvestigationNotStarted
	}
	if i.Verdict == "" {
		return InvestigationInProgress
	}
	return InvestigationCompleted
}

// CanComplete guards against a second verdict.
func (i *Investigation) CanComplete() error {
	if i.Verdict != "" {
		return dErrors.New(dErrors.CodeStateConflict, "investigation already has a verdict")
	}
	return nil
}

// ApplyVerdict records the outcome. HIGH_RISK defaults the risk level to HIGH.
func (i *Investigation) ApplyVerdict(verdict Verdict, risk RiskLevel, reason, notes string, by id.UserID, now time.Time) {
	if risk == "" && verdict == VerdictHighRisk {
		risk = RiskHigh
	}
	hours := ResponseTimeHours(i.StartedAt, now)

	i.Verdict = verdict
	i.RiskLevel = risk
	i.Notes = notes
	i.CompletedBy = &by
	i.CompletedAt = &now
	i.ResponseTimeHours = &hours
	if verdict == VerdictRejected {
		i.RejectionReason = reason
		i.RejectedBy = &by
	}
}

// CanRecordLandlordDecision enforces the override rules: a REJECTED verdict
// and no earlier decision.
func (i *Investigation) CanRecordLandlordDecision() error {
	if i.Verdict != VerdictRejected {
		return dErrors.New(dErrors.CodeStateConflict, "landlord decision requires a rejected investigation")
	}
	if i.LandlordDecision != "" {
		return dErrors.New(dErrors.CodeStateConflict, "landlord decision already recorded")
	}
	return nil
}

func (i *Investigation) ApplyLandlordDecision(decision LandlordDecision, notes string, now time.Time) {
	i.LandlordDecision = decision
	i.LandlordNotes = notes
	i.LandlordDecidedAt = &now
	i.LandlordOverride = decision == LandlordProceed
}

// ResponseTimeHours rounds the elapsed time to the nearest whole hour.
func ResponseTimeHours(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Hours()))
}
