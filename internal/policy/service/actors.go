package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	"leasecover/internal/policy/progress"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
)

// AddActor pre-creates a co-owner landlord, a guarantor or a missing tenant.
func (s *Service) AddActor(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.AddActorRequest) (out *models.Actor, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.AddActor", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "AddActor", start, err) }()

	if err := p.Require(access.CapAddActor); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var method *models.GuaranteeMethod
	if req.GuaranteeMethod != "" {
		method = &req.GuaranteeMethod
	}
	if err := checkActorFields(req.Type, method, req.OwnershipPercentage); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if !policy.Status.CollectsActorInput() {
			return dErrors.Newf(dErrors.CodeStateConflict, "actors cannot be added while the policy is %s", policy.Status)
		}
		if !policy.GuarantorType.Allows(req.Type) {
			return dErrors.Newf(dErrors.CodeValidation, "guarantor type %s does not allow a %s", policy.GuarantorType, req.Type.Label())
		}
		actors, err := s.store.ListActors(txCtx, policy.ID)
		if err != nil {
			return storeErr(err, "failed to load actors")
		}
		if !req.Type.Traits().Multiple && len(models.ActorsOfType(actors, req.Type)) > 0 {
			return dErrors.Newf(dErrors.CodeStateConflict, "policy already has a %s; replace it instead", req.Type.Label())
		}

		at := now(txCtx)
		actor, err := newActor(policy.ID, req.Type, &req.Invite, at)
		if err != nil {
			return err
		}
		if method != nil {
			actor.GuaranteeMethod = *method
		}
		if req.OwnershipPercentage != nil {
			actor.OwnershipPercentage = *req.OwnershipPercentage
		}
		if req.Type == models.ActorLandlord && models.PrimaryLandlord(actors) == nil {
			actor.IsPrimary = true
		}
		if err := s.store.CreateActor(txCtx, actor); err != nil {
			return storeErr(err, "failed to create actor")
		}
		if err := models.CheckActorInvariants(append(actors, actor)); err != nil {
			return err
		}
		out = actor
		return s.appendActivity(txCtx, policy.ID, models.ActionActorAdded, "Added "+actor.Type.Label(),
			map[string]any{"actor_id": actor.ID.String(), "actor_type": string(actor.Type)}, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(models.ActionActorAdded),
		"policy_id", policyID.String(),
		"actor_id", out.ID.String(),
		"user_id", auditUser(p),
	)
	return out, nil
}

// checkActorFields enforces which actor types carry a guarantee method or an
// ownership share.
func checkActorFields(t models.ActorType, method *models.GuaranteeMethod, ownership *decimal.Decimal) error {
	traits := t.Traits()
	if method != nil {
		switch {
		case traits.FixedGuaranteeMethod != "" && *method != traits.FixedGuaranteeMethod:
			return dErrors.Newf(dErrors.CodeValidation, "%s guarantee method is always %s", traits.Label, traits.FixedGuaranteeMethod)
		case traits.FixedGuaranteeMethod == "" && !traits.ChoosesGuarantee:
			return dErrors.Newf(dErrors.CodeValidation, "guarantee_method does not apply to a %s", traits.Label)
		}
	}
	if ownership != nil && t != models.ActorLandlord {
		return dErrors.New(dErrors.CodeValidation, "ownership_percentage applies to landlords only")
	}
	return nil
}

// UpdateActor merges identity, contact and type-specific fields. Actor-token
// callers may edit only their own record while it is not ready.
func (s *Service) UpdateActor(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.UpdateActorRequest) (out *models.Actor, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.UpdateActor", attribute.String("actor_id", actorID.String()))
	defer func() { s.finish(span, "UpdateActor", start, err) }()

	if err := p.Require(access.CapEditActor); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, actor, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if err := s.checkActorWritable(txCtx, p, policy, actor); err != nil {
			return err
		}
		if err := checkActorFields(actor.Type, req.GuaranteeMethod, req.OwnershipPercentage); err != nil {
			return err
		}

		req.ApplyTo(actor, now(txCtx))
		reopened := false
		if actor.InformationComplete && len(actor.MissingFields()) > 0 {
			actor.InformationComplete = false
			actor.CompletedAt = nil
			reopened = true
		}
		if err := s.store.UpdateActor(txCtx, actor); err != nil {
			return storeErr(err, "failed to update actor")
		}
		if err := s.checkInvariants(txCtx, policy.ID); err != nil {
			return err
		}
		out = actor
		return s.appendActivity(txCtx, policy.ID, models.ActionActorUpdated, "Updated "+actor.DisplayName(),
			map[string]any{"actor_id": actor.ID.String(), "sections": updatedSections(req), "reopened": reopened},
			performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func updatedSections(req *models.UpdateActorRequest) []string {
	var sections []string
	if req.Identity != nil {
		sections = append(sections, "identity")
	}
	if req.Contact != nil {
		sections = append(sections, "contact")
	}
	if req.GuaranteeMethod != nil {
		sections = append(sections, "guarantee_method")
	}
	if req.OwnershipPercentage != nil {
		sections = append(sections, "ownership_percentage")
	}
	return sections
}

// SubmitActor marks the actor's information complete once every required
// identity and contact field is present.
func (s *Service) SubmitActor(ctx context.Context, p access.Principal, actorID id.ActorID) (out *models.Actor, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.SubmitActor", attribute.String("actor_id", actorID.String()))
	defer func() { s.finish(span, "SubmitActor", start, err) }()

	if err := p.Require(access.CapEditActor); err != nil {
		return nil, err
	}

	submitted := false
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, actor, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if actor.InformationComplete {
			// Already submitted: only the token binding matters.
			if err := p.OwnsActor(actor.ID, actor.TokenID, false); err != nil {
				return err
			}
			out = actor
			return nil
		}
		if err := s.checkActorWritable(txCtx, p, policy, actor); err != nil {
			return err
		}
		if missing := actor.MissingFields(); len(missing) > 0 {
			return dErrors.Newf(dErrors.CodeValidation, "missing required fields: %s", strings.Join(missing, ", "))
		}
		actor.ApplySubmission(now(txCtx))
		if err := s.store.UpdateActor(txCtx, actor); err != nil {
			return storeErr(err, "failed to update actor")
		}
		out = actor
		submitted = true
		return s.appendActivity(txCtx, policy.ID, models.ActionActorSubmitted, actor.DisplayName()+" completed their information",
			map[string]any{"actor_id": actor.ID.String()}, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	if submitted {
		s.logAudit(ctx, string(models.ActionActorSubmitted),
			"policy_id", out.PolicyID.String(),
			"actor_id", out.ID.String(),
			"user_id", auditUser(p),
		)
	}
	return out, nil
}

// VerifyActor records a staff verdict. A rejection re-opens the actor.
func (s *Service) VerifyActor(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.VerifyActorRequest) (out *models.Actor, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.VerifyActor", attribute.String("actor_id", actorID.String()))
	defer func() { s.finish(span, "VerifyActor", start, err) }()

	if err := p.Require(access.CapVerifyActor); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, actor, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if err := requireMutable(policy); err != nil {
			return err
		}
		if actor.IsArchived() {
			return dErrors.New(dErrors.CodeStateConflict, "actor has been replaced")
		}
		actor.ApplyVerification(req.Status, req.Reason, p.UserID, now(txCtx))
		if err := s.store.UpdateActor(txCtx, actor); err != nil {
			return storeErr(err, "failed to update actor")
		}
		out = actor
		return s.appendActivity(txCtx, policy.ID, models.ActionActorVerified, actor.DisplayName()+" verification: "+string(req.Status),
			map[string]any{"actor_id": actor.ID.String(), "status": string(req.Status), "reason": req.Reason},
			performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(models.ActionActorVerified),
		"policy_id", out.PolicyID.String(),
		"actor_id", out.ID.String(),
		"status", string(out.VerificationStatus),
		"user_id", auditUser(p),
	)
	return out, nil
}

// SetPrimaryLandlord moves the primary flag to actorID in one unit of work.
func (s *Service) SetPrimaryLandlord(ctx context.Context, p access.Principal, actorID id.ActorID) (out *models.Actor, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.SetPrimaryLandlord", attribute.String("actor_id", actorID.String()))
	defer func() { s.finish(span, "SetPrimaryLandlord", start, err) }()

	if err := p.Require(access.CapSetPrimary); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, actor, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if err := requireMutable(policy); err != nil {
			return err
		}
		if actor.Type != models.ActorLandlord {
			return dErrors.New(dErrors.CodeValidation, "only landlords can be primary")
		}
		if actor.IsArchived() {
			return dErrors.New(dErrors.CodeStateConflict, "actor has been replaced")
		}
		out = actor
		if actor.IsPrimary {
			return nil
		}

		actors, err := s.store.ListActors(txCtx, policy.ID)
		if err != nil {
			return storeErr(err, "failed to load actors")
		}
		at := now(txCtx)
		details := map[string]any{"actor_id": actor.ID.String()}
		// The old primary is cleared first so no write ever sees two.
		if previous := models.PrimaryLandlord(actors); previous != nil {
			previous.IsPrimary = false
			previous.UpdatedAt = at
			if err := s.store.UpdateActor(txCtx, previous); err != nil {
				return storeErr(err, "failed to update actor")
			}
			details["previous_actor_id"] = previous.ID.String()
		}
		actor.IsPrimary = true
		actor.UpdatedAt = at
		if err := s.store.UpdateActor(txCtx, actor); err != nil {
			return storeErr(err, "failed to update actor")
		}
		if err := s.checkInvariants(txCtx, policy.ID); err != nil {
			return err
		}
		return s.appendActivity(txCtx, policy.ID, models.ActionPrimaryLandlordChanged,
			actor.DisplayName()+" is now the primary landlord", details, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceActor archives a tenant or guarantor and creates its successor. The
// archived actor's token stops working immediately.
func (s *Service) ReplaceActor(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.ReplaceActorRequest) (out *models.Actor, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.ReplaceActor", attribute.String("actor_id", actorID.String()))
	defer func() { s.finish(span, "ReplaceActor", start, err) }()

	if err := p.Require(access.CapReplaceActor); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, old, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if !policy.Status.CollectsActorInput() {
			return dErrors.Newf(dErrors.CodeStateConflict, "actors cannot be replaced while the policy is %s", policy.Status)
		}
		if !old.Type.Traits().Replaceable {
			return dErrors.Newf(dErrors.CodeValidation, "a %s cannot be replaced", old.Type.Label())
		}
		if old.IsArchived() {
			return dErrors.New(dErrors.CodeStateConflict, "actor has already been replaced")
		}
		method := old.GuaranteeMethod
		if req.GuaranteeMethod != "" {
			if err := checkActorFields(old.Type, &req.GuaranteeMethod, nil); err != nil {
				return err
			}
			method = req.GuaranteeMethod
		}

		at := now(txCtx)
		successor, err := newActor(policy.ID, old.Type, &req.Invite, at)
		if err != nil {
			return err
		}
		if old.Type.Traits().ChoosesGuarantee {
			successor.GuaranteeMethod = method
		}
		// Archive before insert so the single-tenant rule holds at every write.
		old.Archive(successor.ID, at)
		if err := s.store.UpdateActor(txCtx, old); err != nil {
			return storeErr(err, "failed to archive actor")
		}
		if err := s.store.CreateActor(txCtx, successor); err != nil {
			return storeErr(err, "failed to create actor")
		}
		if err := s.checkInvariants(txCtx, policy.ID); err != nil {
			return err
		}
		out = successor
		return s.appendActivity(txCtx, policy.ID, models.ActionActorReplaced, "Replaced "+old.DisplayName(),
			map[string]any{
				"actor_id":    old.ID.String(),
				"replaced_by": successor.ID.String(),
				"actor_type":  string(old.Type),
				"reason":      req.Reason,
			}, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(models.ActionActorReplaced),
		"policy_id", out.PolicyID.String(),
		"actor_id", actorID.String(),
		"replaced_by", out.ID.String(),
		"user_id", auditUser(p),
	)
	return out, nil
}

// AddReference attaches a personal or commercial reference, whichever the
// actor's entity kind requires.
func (s *Service) AddReference(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.AddReferenceRequest) (out *models.Reference, err error) {
	if err := p.Require(access.CapEditActor); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, actor, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if err := s.checkActorWritable(txCtx, p, policy, actor); err != nil {
			return err
		}
		if actor.Type.Traits().References == 0 {
			return dErrors.Newf(dErrors.CodeValidation, "a %s does not provide references", actor.Type.Label())
		}
		if want := actor.RequiredReferenceKind(); req.Kind != want {
			return dErrors.Newf(dErrors.CodeValidation, "this actor must provide %s references", want)
		}
		ref := &models.Reference{
			ID:           id.NewReferenceID(),
			ActorID:      actor.ID,
			PolicyID:     policy.ID,
			Kind:         req.Kind,
			Name:         req.Name,
			Phone:        req.Phone,
			Email:        req.Email,
			Relationship: req.Relationship,
			CompanyName:  req.CompanyName,
			CreatedAt:    now(txCtx),
		}
		if err := s.store.CreateReference(txCtx, ref); err != nil {
			return storeErr(err, "failed to create reference")
		}
		out = ref
		return s.appendActivity(txCtx, policy.ID, models.ActionReferenceAdded, actor.DisplayName()+" added a reference",
			map[string]any{"actor_id": actor.ID.String(), "reference_id": ref.ID.String(), "kind": string(ref.Kind)},
			performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListReferences(ctx context.Context, p access.Principal, actorID id.ActorID) ([]*models.Reference, error) {
	actor, err := s.loadActorForRead(ctx, p, actorID)
	if err != nil {
		return nil, err
	}
	refs, err := s.store.ListReferencesByActor(ctx, actor.ID)
	if err != nil {
		return nil, storeErr(err, "failed to load references")
	}
	return refs, nil
}

// GetActor returns the actor with its documents, references and progress.
func (s *Service) GetActor(ctx context.Context, p access.Principal, actorID id.ActorID) (*models.ActorDetails, error) {
	actor, err := s.loadActorForRead(ctx, p, actorID)
	if err != nil {
		return nil, err
	}
	return s.actorDetails(ctx, actor)
}

func (s *Service) ActorProgress(ctx context.Context, p access.Principal, actorID id.ActorID) (models.ActorProgress, error) {
	details, err := s.GetActor(ctx, p, actorID)
	if err != nil {
		return models.ActorProgress{}, err
	}
	return details.Progress, nil
}

// ResolveActorToken validates an invitation token and returns the actor it
// grants access to. Tokens replaced by a newer invitation are rejected.
func (s *Service) ResolveActorToken(ctx context.Context, token string) (*models.ActorDetails, error) {
	if s.resolver == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "actor token resolution is not configured")
	}
	principal, err := s.resolver.ValidatePrincipal(token)
	if err != nil {
		return nil, err
	}
	if !principal.IsActor() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not an actor token")
	}
	actor, err := s.store.GetActor(ctx, principal.ActorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "actor token has been revoked")
		}
		return nil, storeErr(err, "failed to load actor")
	}
	if actor.PolicyID != principal.PolicyID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "actor token does not match its policy")
	}
	if err := principal.OwnsActor(actor.ID, actor.TokenID, false); err != nil {
		return nil, err
	}
	if actor.TokenExpiresAt != nil && !actor.TokenExpiresAt.After(now(ctx)) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "actor token has expired")
	}
	return s.actorDetails(ctx, actor)
}

// loadActorForRead applies read scope. Actor tokens may read their own
// record whatever its completion.
func (s *Service) loadActorForRead(ctx context.Context, p access.Principal, actorID id.ActorID) (*models.Actor, error) {
	if err := p.Require(access.CapViewPolicy); err != nil {
		return nil, err
	}
	actor, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return nil, notFoundOr(err, "actor")
	}
	if _, err := s.loadPolicy(ctx, p, actor.PolicyID); err != nil {
		return nil, err
	}
	if err := p.OwnsActor(actor.ID, actor.TokenID, false); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *Service) actorDetails(ctx context.Context, actor *models.Actor) (*models.ActorDetails, error) {
	docs, refs, err := s.actorRows(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return &models.ActorDetails{
		Actor:      actor,
		Documents:  docs,
		References: refs,
		Progress:   progress.Compute(actor, docs, refs),
	}, nil
}

func (s *Service) actorRows(ctx context.Context, actorID id.ActorID) ([]*models.Document, []*models.Reference, error) {
	docs, err := s.store.ListDocumentsByActor(ctx, actorID)
	if err != nil {
		return nil, nil, storeErr(err, "failed to load documents")
	}
	refs, err := s.store.ListReferencesByActor(ctx, actorID)
	if err != nil {
		return nil, nil, storeErr(err, "failed to load references")
	}
	return docs, refs, nil
}

// checkActorWritable is the in-transaction ownership check for actor
// mutations. Actor tokens need their current token, a policy still
// collecting input and an actor that is not ready yet.
func (s *Service) checkActorWritable(txCtx context.Context, p access.Principal, policy *models.Policy, actor *models.Actor) error {
	if p.IsActor() {
		docs, refs, err := s.actorRows(txCtx, actor.ID)
		if err != nil {
			return err
		}
		if err := p.OwnsActor(actor.ID, actor.TokenID, progress.Compute(actor, docs, refs).Ready); err != nil {
			return err
		}
		if !policy.Status.CollectsActorInput() {
			return dErrors.New(dErrors.CodeStateConflict, "policy is no longer collecting actor information")
		}
	}
	if actor.IsArchived() {
		return dErrors.New(dErrors.CodeStateConflict, "actor has been replaced")
	}
	return requireMutable(policy)
}

// checkInvariants re-validates the cross-actor rules after a write. A
// violation aborts the unit of work.
func (s *Service) checkInvariants(txCtx context.Context, policyID id.PolicyID) error {
	actors, err := s.store.ListActors(txCtx, policyID)
	if err != nil {
		return storeErr(err, "failed to load actors")
	}
	return models.CheckActorInvariants(actors)
}
