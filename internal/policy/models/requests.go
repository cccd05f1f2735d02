package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/email"
)

const (
	maxFreeText      = 2000
	maxShortText     = 200
	maxContractMonth = 120
)

// ActorInvite is the minimal contact data needed to create and invite an actor.
type ActorInvite struct {
	Kind             EntityKind `json:"entity_kind"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	FirstName        string     `json:"first_name,omitempty"`
	PaternalLastName string     `json:"paternal_last_name,omitempty"`
	CompanyName      string     `json:"company_name,omitempty"`
}

func (a *ActorInvite) Normalize() {
	a.Kind = EntityKind(strings.ToUpper(strings.TrimSpace(string(a.Kind))))
	if a.Kind == "" {
		a.Kind = EntityIndividual
	}
	a.Email = email.Normalize(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.PaternalLastName = strings.TrimSpace(a.PaternalLastName)
	a.CompanyName = strings.TrimSpace(a.CompanyName)
}

func (a *ActorInvite) Validate(field string) error {
	if !a.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "%s.entity_kind is invalid", field)
	}
	if err := email.Validate(a.Email); err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "%s.%s", field, dErrors.MessageOf(err))
	}
	if len(a.FirstName) > maxShortText || len(a.PaternalLastName) > maxShortText || len(a.CompanyName) > maxShortText {
		return dErrors.Newf(dErrors.CodeValidation, "%s names must be at most %d characters", field, maxShortText)
	}
	return nil
}

// ApplyTo copies the invite onto a freshly built actor.
func (a *ActorInvite) ApplyTo(actor *Actor) {
	actor.Contact.Email = a.Email
	actor.Contact.Phone = a.Phone
	actor.Identity.FirstName = a.FirstName
	actor.Identity.PaternalLastName = a.PaternalLastName
	actor.Identity.CompanyName = a.CompanyName
}

// CreatePolicyRequest creates a DRAFT policy with its primary landlord and tenant.
type CreatePolicyRequest struct {
	GuarantorType        GuarantorType   `json:"guarantor_type"`
	Property             Property        `json:"property"`
	RentAmount           decimal.Decimal `json:"rent_amount"`
	DepositAmount        decimal.Decimal `json:"deposit_amount"`
	ContractLengthMonths int             `json:"contract_length_months"`
	StartDate            time.Time       `json:"start_date"`
	Landlord             ActorInvite     `json:"landlord"`
	Tenant               ActorInvite     `json:"tenant"`
}

func (r *CreatePolicyRequest) Normalize() {
	r.GuarantorType = GuarantorType(strings.ToUpper(strings.TrimSpace(string(r.GuarantorType))))
	if r.GuarantorType == "" {
		r.GuarantorType = GuarantorNone
	}
	r.Property.Address = strings.TrimSpace(r.Property.Address)
	r.Property.Type = PropertyType(strings.ToUpper(strings.TrimSpace(string(r.Property.Type))))
	r.Property.Description = strings.TrimSpace(r.Property.Description)
	r.Landlord.Normalize()
	r.Tenant.Normalize()
}

func (r *CreatePolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if !r.GuarantorType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "guarantor_type must be NONE, JOINT_OBLIGOR, AVAL or BOTH")
	}
	if r.Property.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "property.address is required")
	}
	if !r.Property.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "property.type is invalid")
	}
	if len(r.Property.Description) > maxFreeText {
		return dErrors.New(dErrors.CodeValidation, "property.description is too long")
	}
	if !r.RentAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "rent_amount must be positive")
	}
	if r.DepositAmount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "deposit_amount cannot be negative")
	}
	if r.ContractLengthMonths < 1 || r.ContractLengthMonths > maxContractMonth {
		return dErrors.Newf(dErrors.CodeValidation, "contract_length_months must be between 1 and %d", maxContractMonth)
	}
	if r.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_date is required")
	}
	if err := r.Landlord.Validate("landlord"); err != nil {
		return err
	}
	return r.Tenant.Validate("tenant")
}

// Terms derives the financial terms.
func (r *CreatePolicyRequest) Terms() Terms {
	return Terms{
		RentAmount:           r.RentAmount,
		DepositAmount:        r.DepositAmount,
		ContractLengthMonths: r.ContractLengthMonths,
		StartDate:            r.StartDate.UTC(),
		EndDate:              EndDateFor(r.StartDate.UTC(), r.ContractLengthMonths),
		TotalPrice:           r.RentAmount.Mul(decimal.NewFromInt(int64(r.ContractLengthMonths))),
	}
}

// AddActorRequest pre-creates a co-owner landlord or a guarantor.
type AddActorRequest struct {
	Type                ActorType        `json:"actor_type"`
	Invite              ActorInvite      `json:"contact"`
	GuaranteeMethod     GuaranteeMethod  `json:"guarantee_method,omitempty"`
	OwnershipPercentage *decimal.Decimal `json:"ownership_percentage,omitempty"`
}

func (r *AddActorRequest) Normalize() {
	r.Type = ActorType(strings.ToLower(strings.TrimSpace(string(r.Type))))
	r.GuaranteeMethod = GuaranteeMethod(strings.ToUpper(strings.TrimSpace(string(r.GuaranteeMethod))))
	r.Invite.Normalize()
}

func (r *AddActorRequest) Validate() error {
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "actor_type must be landlord, tenant, joint_obligor or aval")
	}
	if r.GuaranteeMethod != "" && !r.GuaranteeMethod.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "guarantee_method must be INCOME or PROPERTY")
	}
	if r.OwnershipPercentage != nil {
		if r.Type != ActorLandlord {
			return dErrors.New(dErrors.CodeValidation, "ownership_percentage applies to landlords only")
		}
		if err := validatePercentage(*r.OwnershipPercentage); err != nil {
			return err
		}
	}
	return r.Invite.Validate("contact")
}

// ReplaceActorRequest archives a tenant or guarantor and creates its successor.
type ReplaceActorRequest struct {
	Invite          ActorInvite     `json:"contact"`
	GuaranteeMethod GuaranteeMethod `json:"guarantee_method,omitempty"`
	Reason          string          `json:"reason"`
}

func (r *ReplaceActorRequest) Normalize() {
	r.Invite.Normalize()
	r.GuaranteeMethod = GuaranteeMethod(strings.ToUpper(strings.TrimSpace(string(r.GuaranteeMethod))))
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *ReplaceActorRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if r.GuaranteeMethod != "" && !r.GuaranteeMethod.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "guarantee_method must be INCOME or PROPERTY")
	}
	return r.Invite.Validate("contact")
}

// UpdateActorRequest replaces whole groups of actor data. Nil groups are left
// untouched.
type UpdateActorRequest struct {
	Identity            *Identity        `json:"identity,omitempty"`
	Contact             *Contact         `json:"contact,omitempty"`
	GuaranteeMethod     *GuaranteeMethod `json:"guarantee_method,omitempty"`
	OwnershipPercentage *decimal.Decimal `json:"ownership_percentage,omitempty"`
}

func (r *UpdateActorRequest) Normalize() {
	if r.Identity != nil {
		i := r.Identity
		i.FirstName = strings.TrimSpace(i.FirstName)
		i.MiddleName = strings.TrimSpace(i.MiddleName)
		i.PaternalLastName = strings.TrimSpace(i.PaternalLastName)
		i.MaternalLastName = strings.TrimSpace(i.MaternalLastName)
		i.CompanyName = strings.TrimSpace(i.CompanyName)
		i.LegalRepName = strings.TrimSpace(i.LegalRepName)
		i.TaxID = strings.ToUpper(strings.TrimSpace(i.TaxID))
		i.CURP = strings.ToUpper(strings.TrimSpace(i.CURP))
		i.Nationality = Nationality(strings.ToUpper(strings.TrimSpace(string(i.Nationality))))
		i.PassportNumber = strings.TrimSpace(i.PassportNumber)
	}
	if r.Contact != nil {
		r.Contact.Email = email.Normalize(r.Contact.Email)
		r.Contact.Phone = strings.TrimSpace(r.Contact.Phone)
		r.Contact.Address = strings.TrimSpace(r.Contact.Address)
	}
	if r.GuaranteeMethod != nil {
		m := GuaranteeMethod(strings.ToUpper(strings.TrimSpace(string(*r.GuaranteeMethod))))
		r.GuaranteeMethod = &m
	}
}

func (r *UpdateActorRequest) Validate() error {
	if r.Identity == nil && r.Contact == nil && r.GuaranteeMethod == nil && r.OwnershipPercentage == nil {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	if r.Identity != nil {
		if r.Identity.Nationality != "" && !r.Identity.Nationality.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "nationality must be MEXICAN or FOREIGN")
		}
		if len(r.Identity.TaxID) > 13 {
			return dErrors.New(dErrors.CodeValidation, "tax_id must be at most 13 characters")
		}
		if r.Identity.CURP != "" && len(r.Identity.CURP) != 18 {
			return dErrors.New(dErrors.CodeValidation, "curp must be 18 characters")
		}
	}
	if r.Contact != nil {
		if err := email.Validate(r.Contact.Email); err != nil {
			return err
		}
		if len(r.Contact.Address) > maxFreeText {
			return dErrors.New(dErrors.CodeValidation, "address is too long")
		}
	}
	if r.GuaranteeMethod != nil && !r.GuaranteeMethod.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "guarantee_method must be INCOME or PROPERTY")
	}
	if r.OwnershipPercentage != nil {
		return validatePercentage(*r.OwnershipPercentage)
	}
	return nil
}

// ApplyTo merges the non-nil groups into actor. Type-specific rules (who may
// carry ownership or choose a guarantee method) are checked by the caller.
func (r *UpdateActorRequest) ApplyTo(actor *Actor, now time.Time) {
	if r.Identity != nil {
		actor.Identity = *r.Identity
	}
	if r.Contact != nil {
		actor.Contact = *r.Contact
	}
	if r.GuaranteeMethod != nil {
		actor.GuaranteeMethod = *r.GuaranteeMethod
	}
	if r.OwnershipPercentage != nil {
		actor.OwnershipPercentage = *r.OwnershipPercentage
	}
	actor.UpdatedAt = now
}

func validatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return dErrors.New(dErrors.CodeValidation, "ownership_percentage must be between 0 and 100")
	}
	return nil
}

// VerifyActorRequest records a staff verdict on an actor.
type VerifyActorRequest struct {
	Status VerificationStatus `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

func (r *VerifyActorRequest) Normalize() {
	r.Status = VerificationStatus(strings.ToUpper(strings.TrimSpace(string(r.Status))))
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *VerifyActorRequest) Validate() error {
	if r.Status != VerificationApproved && r.Status != VerificationRejected {
		return dErrors.New(dErrors.CodeValidation, "status must be APPROVED or REJECTED")
	}
	if r.Status == VerificationRejected && r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required when rejecting")
	}
	return nil
}

// AddReferenceRequest adds one reference to an actor.
type AddReferenceRequest struct {
	Kind         ReferenceKind `json:"kind"`
	Name         string        `json:"name"`
	Phone        string        `json:"phone"`
	Email        string        `json:"email,omitempty"`
	Relationship string        `json:"relationship,omitempty"`
	CompanyName  string        `json:"company_name,omitempty"`
}

func (r *AddReferenceRequest) Normalize() {
	r.Kind = ReferenceKind(strings.ToUpper(strings.TrimSpace(string(r.Kind))))
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = email.Normalize(r.Email)
	r.Relationship = strings.TrimSpace(r.Relationship)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
}

func (r *AddReferenceRequest) Validate() error {
	if !r.Kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "kind must be PERSONAL or COMMERCIAL")
	}
	if r.Name == "" || r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "name and phone are required")
	}
	if r.Kind == ReferenceCommercial && r.CompanyName == "" {
		return dErrors.New(dErrors.CodeValidation, "company_name is required for commercial references")
	}
	if r.Email != "" {
		return email.Validate(r.Email)
	}
	return nil
}

// TransitionRequest is the generic state-machine entry.
type TransitionRequest struct {
	Target  Status             `json:"target"`
	Reason  CancellationReason `json:"reason,omitempty"`
	Comment string             `json:"comment,omitempty"`
}

func (r *TransitionRequest) Normalize() {
	r.Target = Status(strings.ToUpper(strings.TrimSpace(string(r.Target))))
	r.Reason = CancellationReason(strings.ToUpper(strings.TrimSpace(string(r.Reason))))
	r.Comment = strings.TrimSpace(r.Comment)
}

func (r *TransitionRequest) Validate() error {
	if !r.Target.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "target is not a policy status")
	}
	if r.Target == StatusCancelled {
		return ValidateCancellation(r.Reason, r.Comment)
	}
	return nil
}

// ValidateCancellation requires both a reason code and a comment.
func ValidateCancellation(reason CancellationReason, comment string) error {
	if !reason.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "cancellation reason code is required")
	}
	if strings.TrimSpace(comment) == "" {
		return dErrors.New(dErrors.CodeValidation, "cancellation comment is required")
	}
	if len(comment) > maxFreeText {
		return dErrors.New(dErrors.CodeValidation, "cancellation comment is too long")
	}
	return nil
}

// CompleteInvestigationRequest records the investigation verdict.
type CompleteInvestigationRequest struct {
	Verdict         Verdict   `json:"verdict"`
	RiskLevel       RiskLevel `json:"risk_level,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

func (r *CompleteInvestigationRequest) Normalize() {
	r.Verdict = Verdict(strings.ToUpper(strings.TrimSpace(string(r.Verdict))))
	r.RiskLevel = RiskLevel(strings.ToUpper(strings.TrimSpace(string(r.RiskLevel))))
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CompleteInvestigationRequest) Validate() error {
	if !r.Verdict.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "verdict must be APPROVED, REJECTED or HIGH_RISK")
	}
	if r.RiskLevel != "" && !r.RiskLevel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "risk_level must be LOW, MEDIUM or HIGH")
	}
	if r.Verdict == VerdictRejected && r.RejectionReason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection_reason is required for a rejected verdict")
	}
	return nil
}

// LandlordDecisionRequest is the landlord's answer to a rejected investigation.
type LandlordDecisionRequest struct {
	Decision LandlordDecision `json:"decision"`
	Notes    string           `json:"notes,omitempty"`
}

func (r *LandlordDecisionRequest) Normalize() {
	r.Decision = LandlordDecision(strings.ToUpper(strings.TrimSpace(string(r.Decision))))
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *LandlordDecisionRequest) Validate() error {
	if !r.Decision.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "decision must be PROCEED or REJECT")
	}
	return nil
}

// CreatePaymentRequest creates one payment obligation.
type CreatePaymentRequest struct {
	PayerType   PayerType        `json:"payer_type"`
	Description string           `json:"description,omitempty"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	Method      PaymentMethod    `json:"method,omitempty"`
}

func (r *CreatePaymentRequest) Normalize() {
	r.PayerType = PayerType(strings.ToUpper(strings.TrimSpace(string(r.PayerType))))
	r.Method = PaymentMethod(strings.ToUpper(strings.TrimSpace(string(r.Method))))
	if r.Method == "" {
		r.Method = MethodCard
	}
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreatePaymentRequest) Validate() error {
	if !r.PayerType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "payer_type is invalid")
	}
	if !r.Subtotal.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "subtotal must be positive")
	}
	if r.TaxRate != nil && (r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1))) {
		return dErrors.New(dErrors.CodeValidation, "tax_rate must be between 0 and 1")
	}
	if !r.Method.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "method is invalid")
	}
	return nil
}

// ManualPaymentRequest records an offline settlement.
type ManualPaymentRequest struct {
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference"`
}

func (r *ManualPaymentRequest) Normalize() {
	r.Method = PaymentMethod(strings.ToUpper(strings.TrimSpace(string(r.Method))))
	r.Reference = strings.TrimSpace(r.Reference)
}

func (r *ManualPaymentRequest) Validate() error {
	if !r.Method.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "method is invalid")
	}
	if r.Reference == "" {
		return dErrors.New(dErrors.CodeValidation, "reference is required")
	}
	return nil
}

// RefundRequest carries the refund justification.
type RefundRequest struct {
	Reason string `json:"reason"`
}

func (r *RefundRequest) Normalize() { r.Reason = strings.TrimSpace(r.Reason) }

func (r *RefundRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// SendInvitationsRequest optionally narrows invitations to specific actors.
type SendInvitationsRequest struct {
	ActorIDs []id.ActorID `json:"actor_ids,omitempty"`
}
