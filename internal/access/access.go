// Package access resolves callers into a Principal and answers capability
// questions about it.
//
// The role check runs once at the service boundary through Principal.Require.
// Ownership (brokers act on their own policies, actor tokens on their own
// record while it is not ready) depends on loaded rows and is re-checked by
// the service inside the transaction with OwnsPolicy and OwnsActor.
package access

import (
	"context"
	"strings"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleBroker Role = "BROKER"
	RoleActor  Role = "ACTOR"
)

func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// IsStaff reports ADMIN and STAFF, the roles with unscoped access.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// ParseRole accepts the upper-case wire form.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeUnauthorized, "unknown role %q", raw)
	}
	return r, nil
}

// Capability names one operation class.
type Capability string

const (
	CapViewPolicy       Capability = "policy:view"
	CapCreatePolicy     Capability = "policy:create"
	CapSendInvitations  Capability = "policy:invite"
	CapAddActor         Capability = "actor:add"
	CapReplaceActor     Capability = "actor:replace"
	CapVerifyActor      Capability = "actor:verify"
	CapSetPrimary       Capability = "actor:primary"
	CapEditActor        Capability = "actor:edit"
	CapInvestigate      Capability = "investigation:run"
	CapLandlordDecision Capability = "investigation:decide"
	CapAdvancePolicy    Capability = "policy:advance"
	CapCancelPolicy     Capability = "policy:cancel"
	CapUploadContract   Capability = "contract:upload"
	CapCreatePayment    Capability = "payment:create"
	CapSettlePayment    Capability = "payment:settle"
)

type capabilitySet map[Capability]struct{}

func setOf(caps ...Capability) capabilitySet {
	s := make(capabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

var allCapabilities = []Capability{
	CapViewPolicy, CapCreatePolicy, CapSendInvitations,
	CapAddActor, CapReplaceActor, CapVerifyActor, CapSetPrimary, CapEditActor,
	CapInvestigate, CapLandlordDecision, CapAdvancePolicy, CapCancelPolicy,
	CapUploadContract, CapCreatePayment, CapSettlePayment,
}

var roleCapabilities = map[Role]capabilitySet{
	RoleAdmin: setOf(allCapabilities...),
	RoleStaff: setOf(allCapabilities...),
	RoleBroker: setOf(
		CapViewPolicy, CapCreatePolicy, CapSendInvitations,
		CapAddActor, CapReplaceActor, CapEditActor,
		CapCreatePayment,
	),
	RoleActor: setOf(CapViewPolicy, CapEditActor, CapLandlordDecision),
}

// Principal is an authenticated caller.
//
// Staff and brokers carry a UserID. Actor-token principals are bound to
// exactly one actor of one policy and carry the token id that must still
// match the actor record.
type Principal struct {
	Role     Role        `json:"role"`
	UserID   id.UserID   `json:"user_id,omitempty"`
	ActorID  id.ActorID  `json:"actor_id,omitempty"`
	PolicyID id.PolicyID `json:"policy_id,omitempty"`
	TokenID  string      `json:"-"`
}

// System is the principal used by background workers.
var System = Principal{Role: RoleAdmin}

func (p Principal) Can(c Capability) bool {
	_, ok := roleCapabilities[p.Role][c]
	return ok
}

// Require fails with Forbidden when the role lacks c.
func (p Principal) Require(c Capability) error {
	if !p.Can(c) {
		return dErrors.Newf(dErrors.CodeForbidden, "%s may not %s", strings.ToLower(string(p.Role)), c)
	}
	return nil
}

func (p Principal) IsActor() bool { return p.Role == RoleActor }

// OwnsPolicy checks policy-level scope: staff see everything, brokers only
// policies they created, actor tokens only their own policy.
func (p Principal) OwnsPolicy(policyID id.PolicyID, createdBy id.UserID) error {
	switch p.Role {
	case RoleAdmin, RoleStaff:
		return nil
	case RoleBroker:
		if !p.UserID.IsNil() && p.UserID == createdBy {
			return nil
		}
	case RoleActor:
		if p.PolicyID == policyID {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "policy is outside the caller's scope")
}

// OwnsActor checks record-level scope for actor tokens: the token must be the
// actor's current one and the actor must not be ready yet. Other roles pass;
// their scope is the policy.
func (p Principal) OwnsActor(actorID id.ActorID, currentTokenID string, ready bool) error {
	if p.Role != RoleActor {
		return nil
	}
	if p.ActorID != actorID {
		return dErrors.New(dErrors.CodeForbidden, "actor token is bound to a different actor")
	}
	if currentTokenID == "" || p.TokenID != currentTokenID {
		return dErrors.New(dErrors.CodeUnauthorized, "actor token has been revoked")
	}
	if ready {
		return dErrors.New(dErrors.CodeForbidden, "actor information is already complete")
	}
	return nil
}

type principalKey struct{}

// ContextKeyPrincipal is exported for tests that build contexts directly.
var ContextKeyPrincipal = principalKey{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// FromContext returns the authenticated principal, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok
}
