package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// ActorType is the closed set of policy participants. Behaviour that differs
// per type lives in actorTraits and in the requirements table, never in
// ad-hoc switches at call sites.
type ActorType string

const (
	ActorLandlord     ActorType = "landlord"
	ActorTenant       ActorType = "tenant"
	ActorJointObligor ActorType = "joint_obligor"
	ActorAval         ActorType = "aval"
)

// AllActorTypes in the order the investigation gate reports them.
var AllActorTypes = []ActorType{ActorLandlord, ActorTenant, ActorJointObligor, ActorAval}

// ActorTraits captures the per-type differences.
type ActorTraits struct {
	Label string
	// References is the number of references the actor must provide; zero
	// means the actor has no reference requirement at all.
	References int
	// Multiple allows more than one non-archived actor of the type per policy.
	Multiple bool
	// Replaceable actors may be archived and replaced before investigation.
	Replaceable bool
	// GuaranteeMethod is fixed for avals, chosen for joint obligors, unused otherwise.
	FixedGuaranteeMethod GuaranteeMethod
	ChoosesGuarantee     bool
}

var actorTraits = map[ActorType]ActorTraits{
	ActorLandlord: {
		Label:    "landlord",
		Multiple: true,
	},
	ActorTenant: {
		Label:       "tenant",
		References:  3,
		Replaceable: true,
	},
	ActorJointObligor: {
		Label:            "joint obligor",
		References:       2,
		Multiple:         true,
		Replaceable:      true,
		ChoosesGuarantee: true,
	},
	ActorAval: {
		Label:                "aval",
		Multiple:             true,
		Replaceable:          true,
		FixedGuaranteeMethod: GuaranteeProperty,
	},
}

func (t ActorType) IsValid() bool {
	_, ok := actorTraits[t]
	return ok
}

// Traits returns the trait row for t. Unknown types get the zero value.
func (t ActorType) Traits() ActorTraits {
	return actorTraits[t]
}

func (t ActorType) Label() string {
	if tr, ok := actorTraits[t]; ok {
		return tr.Label
	}
	return string(t)
}

// ParseActorType accepts the lower-case wire form.
func ParseActorType(raw string) (ActorType, error) {
	t := ActorType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown actor type %q", raw)
	}
	return t, nil
}

// EntityKind distinguishes natural from legal persons.
type EntityKind string

const (
	EntityIndividual EntityKind = "INDIVIDUAL"
	EntityCompany    EntityKind = "COMPANY"
)

func (k EntityKind) IsValid() bool { return k == EntityIndividual || k == EntityCompany }

type Nationality string

const (
	NationalityMexican Nationality = "MEXICAN"
	NationalityForeign Nationality = "FOREIGN"
)

func (n Nationality) IsValid() bool { return n == NationalityMexican || n == NationalityForeign }

type GuaranteeMethod string

const (
	GuaranteeIncome   GuaranteeMethod = "INCOME"
	GuaranteeProperty GuaranteeMethod = "PROPERTY"
)

func (g GuaranteeMethod) IsValid() bool { return g == GuaranteeIncome || g == GuaranteeProperty }

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

func (v VerificationStatus) IsValid() bool {
	return v == VerificationPending || v == VerificationApproved || v == VerificationRejected
}

// Identity holds the natural or legal person's identifying data.
type Identity struct {
	FirstName        string      `json:"first_name,omitempty"`
	MiddleName       string      `json:"middle_name,omitempty"`
	PaternalLastName string      `json:"paternal_last_name,omitempty"`
	MaternalLastName string      `json:"maternal_last_name,omitempty"`
	CompanyName      string      `json:"company_name,omitempty"`
	LegalRepName     string      `json:"legal_representative_name,omitempty"`
	TaxID            string      `json:"tax_id,omitempty"`
	CURP             string      `json:"curp,omitempty"`
	Nationality      Nationality `json:"nationality,omitempty"`
	PassportNumber   string      `json:"passport_number,omitempty"`
}

// Contact holds how the actor is reached.
type Contact struct {
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Actor is one participant's submission on a policy.
//
// Invariants:
//   - At most one non-archived landlord per policy has IsPrimary set
//   - OwnershipPercentage is only meaningful for landlords
//   - Archived actors are read-only and excluded from every gate
type Actor struct {
	ID       id.ActorID  `json:"id"`
	PolicyID id.PolicyID `json:"policy_id"`
	Type     ActorType   `json:"actor_type"`
	Kind     EntityKind  `json:"entity_kind"`

	Identity        Identity        `json:"identity"`
	Contact         Contact         `json:"contact"`
	GuaranteeMethod GuaranteeMethod `json:"guarantee_method,omitempty"`

	IsPrimary           bool            `json:"is_primary"`
	OwnershipPercentage decimal.Decimal `json:"ownership_percentage"`

	InformationComplete bool       `json:"information_complete"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	VerificationStatus VerificationStatus `json:"verification_status"`
	RejectionReason    string             `json:"rejection_reason,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy         *id.UserID         `json:"verified_by,omitempty"`

	TokenID          string     `json:"-"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
	InvitationSentAt *time.Time `json:"invitation_sent_at,omitempty"`

	ArchivedAt *time.Time  `json:"archived_at,omitempty"`
	ReplacedBy *id.ActorID `json:"replaced_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewActor builds a PENDING, incomplete actor. The guarantee method of avals
// is fixed by type.
func NewActor(actorID id.ActorID, policyID id.PolicyID, t ActorType, kind EntityKind, now time.Time) (*Actor, error) {
	if !t.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown actor type %q", t)
	}
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown entity kind %q", kind)
	}
	a := &Actor{
		ID:                 actorID,
		PolicyID:           policyID,
		Type:               t,
		Kind:               kind,
		VerificationStatus: VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if m := t.Traits().FixedGuaranteeMethod; m != "" {
		a.GuaranteeMethod = m
	}
	return a, nil
}

func (a *Actor) IsArchived() bool { return a.ArchivedAt != nil }

func (a *Actor) IsCompany() bool { return a.Kind == EntityCompany }

// FullName is the company name for legal persons, the joined names otherwise.
func (a *Actor) FullName() string {
	if a.IsCompany() {
		return strings.TrimSpace(a.Identity.CompanyName)
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Identity.FirstName, a.Identity.MiddleName, a.Identity.PaternalLastName, a.Identity.MaternalLastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// DisplayName is used in error messages that name a blocking actor.
func (a *Actor) DisplayName() string {
	if name := a.FullName(); name != "" {
		return a.Type.Label() + " " + name
	}
	return a.Type.Label() + " " + a.ID.String()
}

// MissingFields lists the identity and contact fields that block submission.
func (a *Actor) MissingFields() []string {
	var missing []string
	need := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	if a.IsCompany() {
		need(a.Identity.CompanyName, "company_name")
		need(a.Identity.LegalRepName, "legal_representative_name")
		need(a.Identity.TaxID, "tax_id")
	} else {
		need(a.Identity.FirstName, "first_name")
		need(a.Identity.PaternalLastName, "paternal_last_name")
		if !a.Identity.Nationality.IsValid() {
			missing = append(missing, "nationality")
		}
		if a.Identity.Nationality == NationalityForeign {
			need(a.Identity.PassportNumber, "passport_number")
		}
	}
	need(a.Contact.Email, "email")
	need(a.Contact.Phone, "phone")

	// Landlords and avals pledge property, so an address is mandatory.
	if a.Type == ActorLandlord || a.Type.Traits().FixedGuaranteeMethod == GuaranteeProperty {
		need(a.Contact.Address, "address")
	}
	if a.Type.Traits().ChoosesGuarantee && !a.GuaranteeMethod.IsValid() {
		missing = append(missing, "guarantee_method")
	}
	return missing
}

// ApplySubmission marks the actor's information complete.
func (a *Actor) ApplySubmission(now time.Time) {
	a.InformationComplete = true
	a.CompletedAt = &now
	a.UpdatedAt = now
}

// ApplyVerification records a staff verdict. Rejection re-opens the actor so
// it can correct and resubmit.
func (a *Actor) ApplyVerification(status VerificationStatus, reason string, by id.UserID, now time.Time) {
	a.VerificationStatus = status
	a.VerifiedAt = &now
	a.VerifiedBy = &by
	a.UpdatedAt = now
	if status == VerificationRejected {
		a.RejectionReason = reason
		a.InformationComplete = false
		a.CompletedAt = nil
		return
	}
	a.RejectionReason = ""
}

// ApplyInvitation records a freshly issued access token. The previous token
// id is overwritten, which revokes it.
func (a *Actor) ApplyInvitation(tokenID string, expiresAt, now time.Time) {
	a.TokenID = tokenID
	a.TokenExpiresAt = &expiresAt
	a.InvitationSentAt = &now
	a.UpdatedAt = now
}

// Archive retires the actor in favour of its replacement.
func (a *Actor) Archive(replacement id.ActorID, now time.Time) {
	a.ArchivedAt = &now
	a.ReplacedBy = &replacement
	a.IsPrimary = false
	a.TokenID = ""
	a.UpdatedAt = now
}

// ReferenceKind is the kind of reference an actor must provide.
type ReferenceKind string

const (
	ReferencePersonal   ReferenceKind = "PERSONAL"
	ReferenceCommercial ReferenceKind = "COMMERCIAL"
)

func (k ReferenceKind) IsValid() bool { return k == ReferencePersonal || k == ReferenceCommercial }

// RequiredReferenceKind is personal for individuals, commercial for companies.
func (a *Actor) RequiredReferenceKind() ReferenceKind {
	if a.IsCompany() {
		return ReferenceCommercial
	}
	return ReferencePersonal
}

// Reference is a personal or commercial reference supplied by an actor.
type Reference struct {
	ID           id.ReferenceID `json:"id"`
	ActorID      id.ActorID     `json:"actor_id"`
	PolicyID     id.PolicyID    `json:"policy_id"`
	Kind         ReferenceKind  `json:"kind"`
	Name         string         `json:"name"`
	Phone        string         `json:"phone"`
	Email        string         `json:"email,omitempty"`
	Relationship string         `json:"relationship,omitempty"`
	CompanyName  string         `json:"company_name,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ActorsOfType filters non-archived actors of t.
func ActorsOfType(actors []*Actor, t ActorType) []*Actor {
	var out []*Actor
	for _, a := range actors {
		if a.Type == t && !a.IsArchived() {
			out = append(out, a)
		}
	}
	return out
}

// PrimaryLandlord returns the single primary landlord, or nil.
func PrimaryLandlord(actors []*Actor) *Actor {
	for _, a := range ActorsOfType(actors, ActorLandlord) {
		if a.IsPrimary {
			return a
		}
	}
	return nil
}

// CheckActorInvariants validates the cross-actor invariants of one policy.
// More than one primary landlord is an invariant violation; ownership above
// 100% is a validation error the caller can fix.
func CheckActorInvariants(actors []*Actor) error {
	landlords := ActorsOfType(actors, ActorLandlord)
	primaries := 0
	total := decimal.Zero
	for _, l := range landlords {
		if l.IsPrimary {
			primaries++
		}
		total = total.Add(l.OwnershipPercentage)
	}
	if primaries > 1 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "policy has %d primary landlords", primaries)
	}
	if total.GreaterThan(decimal.NewFromInt(100)) {
		return dErrors.Newf(dErrors.CodeValidation, "landlord ownership totals %s%%, above 100%%", total.String())
	}
	if len(ActorsOfType(actors, ActorTenant)) > 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy has more than one active tenant")
	}
	return nil
}
