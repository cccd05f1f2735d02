package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	"leasecover/internal/policy/progress"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
)

// CreatePolicy creates a DRAFT policy with its primary landlord and tenant.
func (s *Service) CreatePolicy(ctx context.Context, p access.Principal, req *models.CreatePolicyRequest) (out *models.Policy, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.CreatePolicy")
	defer func() { s.finish(span, "CreatePolicy", start, err) }()

	if err := p.Require(access.CapCreatePolicy); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= policyNumberAttempts; attempt++ {
		out, err = s.createPolicy(ctx, p, req)
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			break
		}
		s.logger.WarnContext(ctx, "policy number collision", "attempt", attempt)
	}
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "could not allocate a unique policy number")
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("policy_id", out.ID.String()))
	s.logAudit(ctx, string(models.ActionPolicyCreated),
		"policy_id", out.ID.String(),
		"policy_number", out.Number,
		"user_id", auditUser(p),
	)
	return out, nil
}

// createPolicy is one attempt. A number collision is returned unwrapped so
// the caller can retry with a fresh number.
func (s *Service) createPolicy(ctx context.Context, p access.Principal, req *models.CreatePolicyRequest) (*models.Policy, error) {
	var created *models.Policy
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		at := now(txCtx)
		number, err := models.NewPolicyNumber(at)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate policy number")
		}
		policy := &models.Policy{
			ID:            id.NewPolicyID(),
			Number:        number,
			Status:        models.StatusDraft,
			GuarantorType: req.GuarantorType,
			Property:      req.Property,
			Terms:         req.Terms(),
			CreatedBy:     p.UserID,
			CreatedAt:     at,
			UpdatedAt:     at,
		}
		if err := s.store.CreatePolicy(txCtx, policy); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return err
			}
			return storeErr(err, "failed to create policy")
		}

		landlord, err := newActor(policy.ID, models.ActorLandlord, &req.Landlord, at)
		if err != nil {
			return err
		}
		landlord.IsPrimary = true
		tenant, err := newActor(policy.ID, models.ActorTenant, &req.Tenant, at)
		if err != nil {
			return err
		}
		for _, a := range []*models.Actor{landlord, tenant} {
			if err := s.store.CreateActor(txCtx, a); err != nil {
				return storeErr(err, "failed to create actor")
			}
		}

		created = policy
		return s.appendActivity(txCtx, policy.ID, models.ActionPolicyCreated, "Policy created",
			map[string]any{
				"policy_number":  policy.Number,
				"guarantor_type": string(policy.GuarantorType),
				"landlord_id":    landlord.ID.String(),
				"tenant_id":      tenant.ID.String(),
			}, performerFor(txCtx, p))
	})
	return created, err
}

func newActor(policyID id.PolicyID, t models.ActorType, invite *models.ActorInvite, at time.Time) (*models.Actor, error) {
	a, err := models.NewActor(id.NewActorID(), policyID, t, invite.Kind, at)
	if err != nil {
		return nil, validationFromInvariant(err)
	}
	invite.ApplyTo(a)
	return a, nil
}

// GetPolicy returns the policy row.
func (s *Service) GetPolicy(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	if err := p.Require(access.CapViewPolicy); err != nil {
		return nil, err
	}
	policy, err := s.loadPolicy(ctx, p, policyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkActorToken(ctx, p); err != nil {
		return nil, err
	}
	return policy, nil
}

// GetPolicyDetails assembles the full read model. Actor-token callers see
// only their own actor and no activity log.
func (s *Service) GetPolicyDetails(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.PolicyDetails, error) {
	policy, err := s.GetPolicy(ctx, p, policyID)
	if err != nil {
		return nil, err
	}

	actors, err := s.store.ListActors(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load actors")
	}
	docs, err := s.store.ListDocumentsByPolicy(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load documents")
	}
	refs, err := s.store.ListReferencesByPolicy(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load references")
	}
	inv, err := s.store.GetInvestigation(ctx, policyID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, storeErr(err, "failed to load investigation")
	}
	payments, err := s.store.ListPayments(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load payments")
	}
	contracts, err := s.store.ListContracts(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load contracts")
	}

	details := &models.PolicyDetails{
		Policy:        policy,
		Investigation: inv,
		Payments:      payments,
		FullyPaid:     models.FullyPaid(payments),
		Contracts:     contracts,
	}
	for _, a := range actors {
		if p.IsActor() && a.ID != p.ActorID {
			continue
		}
		details.Actors = append(details.Actors, assembleActor(a, docs, refs))
	}
	if !p.IsActor() {
		if details.Activities, err = s.store.ListActivities(ctx, policyID); err != nil {
			return nil, storeErr(err, "failed to load activities")
		}
	}
	return details, nil
}

// assembleActor picks the actor's own rows out of policy-wide lists.
func assembleActor(a *models.Actor, docs []*models.Document, refs []*models.Reference) *models.ActorDetails {
	d := &models.ActorDetails{Actor: a, Documents: []*models.Document{}, References: []*models.Reference{}}
	for _, doc := range docs {
		if doc.ActorID == a.ID {
			d.Documents = append(d.Documents, doc)
		}
	}
	for _, ref := range refs {
		if ref.ActorID == a.ID {
			d.References = append(d.References, ref)
		}
	}
	d.Progress = progress.Compute(a, d.Documents, d.References)
	return d
}

// ListPolicies pages through policies. Brokers are always narrowed to the
// policies they created.
func (s *Service) ListPolicies(ctx context.Context, p access.Principal, filter models.PolicyFilter) ([]*models.Policy, error) {
	if err := p.Require(access.CapViewPolicy); err != nil {
		return nil, err
	}
	if p.IsActor() {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor tokens cannot list policies")
	}
	if p.Role == access.RoleBroker {
		owner := p.UserID
		filter.CreatedBy = &owner
	}
	filter.Clamp()
	policies, err := s.store.ListPolicies(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "failed to list policies")
	}
	return policies, nil
}

// ListActivities returns the policy's audit trail, oldest first.
func (s *Service) ListActivities(ctx context.Context, p access.Principal, policyID id.PolicyID) ([]*models.Activity, error) {
	if err := p.Require(access.CapViewPolicy); err != nil {
		return nil, err
	}
	if p.IsActor() {
		return nil, dErrors.New(dErrors.CodeForbidden, "the activity log is not available to actor tokens")
	}
	if _, err := s.loadPolicy(ctx, p, policyID); err != nil {
		return nil, err
	}
	activities, err := s.store.ListActivities(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load activities")
	}
	return activities, nil
}

// checkActorToken rejects actor tokens that a later invitation replaced.
func (s *Service) checkActorToken(ctx context.Context, p access.Principal) error {
	if !p.IsActor() {
		return nil
	}
	actor, err := s.store.GetActor(ctx, p.ActorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "actor token has been revoked")
		}
		return storeErr(err, "failed to load actor")
	}
	return p.OwnsActor(actor.ID, actor.TokenID, false)
}
