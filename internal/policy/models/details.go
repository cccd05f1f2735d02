package models

import id "leasecover/pkg/domain"

// ActorProgress is the completion view of one actor.
type ActorProgress struct {
	Percentage         int                `json:"percentage"`
	Ready              bool               `json:"ready"`
	MissingDocuments   []DocumentCategory `json:"missing_documents,omitempty"`
	ReferencesProvided int                `json:"references_provided"`
	ReferencesRequired int                `json:"references_required"`
}

// ActorDetails is an actor with its documents, references and progress.
type ActorDetails struct {
	Actor      *Actor        `json:"actor"`
	Documents  []*Document   `json:"documents"`
	References []*Reference  `json:"references"`
	Progress   ActorProgress `json:"progress"`
}

// PolicyDetails is the full read model of a policy.
type PolicyDetails struct {
	Policy        *Policy         `json:"policy"`
	Actors        []*ActorDetails `json:"actors"`
	Investigation *Investigation  `json:"investigation,omitempty"`
	Payments      []*Payment      `json:"payments"`
	FullyPaid     bool            `json:"fully_paid"`
	Contracts     []*Contract     `json:"contracts"`
	Activities    []*Activity     `json:"activities"`
}

// InvitationOutcome reports the delivery of one invitation. Delivery runs
// after commit, so a failure here never undoes the issued token.
type InvitationOutcome struct {
	ActorID   id.ActorID `json:"actor_id"`
	Email     string     `json:"email"`
	Delivered bool       `json:"delivered"`
	Error     string     `json:"error,omitempty"`
}

// InvitationResult is the policy after SendInvitations plus per-actor delivery.
type InvitationResult struct {
	Policy      *Policy             `json:"policy"`
	Invitations []InvitationOutcome `json:"invitations"`
}

// GatewayEventResult describes what a webhook event did.
type GatewayEventResult struct {
	Payment   *Payment `json:"payment,omitempty"`
	Applied   bool     `json:"applied"`
	Duplicate bool     `json:"duplicate"`
	// BecameFullyPaid is true only for the event that completed the last
	// outstanding payment.
	BecameFullyPaid bool `json:"became_fully_paid"`
}
