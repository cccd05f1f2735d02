package service

import (
	"context"
	"time"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
)

// Stores return pointers the caller owns: mutating a returned value never
// changes stored state until the matching Update call. Missing rows are
// reported as sentinel.ErrNotFound.

type PolicyStore interface {
	// CreatePolicy returns sentinel.ErrAlreadyUsed when the number is taken.
	CreatePolicy(ctx context.Context, p *models.Policy) error
	GetPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	// LockPolicy reads the policy and holds its row lock until the unit of
	// work ends. Every mutation locks its policy first.
	LockPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	UpdatePolicy(ctx context.Context, p *models.Policy) error
	ListPolicies(ctx context.Context, filter models.PolicyFilter) ([]*models.Policy, error)
	// ListDueForExpiry returns ACTIVE policies whose end date is not after now.
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]id.PolicyID, error)
}

type ActorStore interface {
	CreateActor(ctx context.Context, a *models.Actor) error
	UpdateActor(ctx context.Context, a *models.Actor) error
	GetActor(ctx context.Context, actorID id.ActorID) (*models.Actor, error)
	// ListActors includes archived actors, oldest first.
	ListActors(ctx context.Context, policyID id.PolicyID) ([]*models.Actor, error)
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	DeleteDocument(ctx context.Context, documentID id.DocumentID) error
	ListDocumentsByActor(ctx context.Context, actorID id.ActorID) ([]*models.Document, error)
	ListDocumentsByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Document, error)
}

type ReferenceStore interface {
	CreateReference(ctx context.Context, r *models.Reference) error
	ListReferencesByActor(ctx context.Context, actorID id.ActorID) ([]*models.Reference, error)
	ListReferencesByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Reference, error)
}

type InvestigationStore interface {
	// CreateInvestigation returns sentinel.ErrAlreadyUsed when the policy
	// already has one.
	CreateInvestigation(ctx context.Context, inv *models.Investigation) error
	GetInvestigation(ctx context.Context, policyID id.PolicyID) (*models.Investigation, error)
	UpdateInvestigation(ctx context.Context, inv *models.Investigation) error
}

type PaymentStore interface {
	// CreatePayment returns sentinel.ErrAlreadyUsed on a duplicate gateway session.
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	LockPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, policyID id.PolicyID) ([]*models.Payment, error)
}

type ContractStore interface {
	// CreateContractVersion clears the policy's current flag and inserts c as
	// the new current version. A duplicate version is sentinel.ErrConflict.
	CreateContractVersion(ctx context.Context, c *models.Contract) error
	// ListContracts is ordered by ascending version.
	ListContracts(ctx context.Context, policyID id.PolicyID) ([]*models.Contract, error)
	CurrentContract(ctx context.Context, policyID id.PolicyID) (*models.Contract, error)
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, a *models.Activity) error
	// ListActivities is ordered oldest first.
	ListActivities(ctx context.Context, policyID id.PolicyID) ([]*models.Activity, error)
}

// Store is the full persistence surface of the policy module.
type Store interface {
	PolicyStore
	ActorStore
	DocumentStore
	ReferenceStore
	InvestigationStore
	PaymentStore
	ContractStore
	ActivityStore
}

// StoreTx runs fn as one unit of work. Store calls made with txCtx join it;
// fn returning an error discards every write made through txCtx.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}
