package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
)

// StartInvestigation opens the policy's only investigation and moves it to
// UNDER_INVESTIGATION. Every required actor must be ready.
func (s *Service) StartInvestigation(ctx context.Context, p access.Principal, policyID id.PolicyID) (out *models.Investigation, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.StartInvestigation", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "StartInvestigation", start, err) }()

	if err := p.Require(access.CapInvestigate); err != nil {
		return nil, err
	}

	var policy *models.Policy
	var from models.Status
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if _, err := s.store.GetInvestigation(txCtx, locked.ID); err == nil {
			return dErrors.New(dErrors.CodeStateConflict, "policy already has an investigation")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return storeErr(err, "failed to load investigation")
		}

		from = locked.Status
		if err := s.advance(txCtx, p, locked, edge{target: models.StatusUnderInvestigation}); err != nil {
			return err
		}
		inv, err := s.loadInvestigation(txCtx, locked.ID)
		if err != nil {
			return err
		}
		policy, out = locked, inv
		return s.appendActivity(txCtx, locked.ID, models.ActionInvestigationStarted, "Investigation started",
			map[string]any{
				"investigation_id": inv.ID.String(),
				"from":             string(from),
				"to":               string(locked.Status),
			}, performerFor(txCtx, p))
	})
	if err != nil {
		s.metrics.IncrementTransitionRejected(string(models.StatusUnderInvestigation), string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.transitioned(ctx, p, policy, from)
	return out, nil
}

// CompleteInvestigation records the verdict and moves the policy on:
// APPROVED and HIGH_RISK to PENDING_APPROVAL, REJECTED to
// INVESTIGATION_REJECTED. A second completion fails with a state conflict.
func (s *Service) CompleteInvestigation(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.CompleteInvestigationRequest) (out *models.Investigation, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.CompleteInvestigation", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "CompleteInvestigation", start, err) }()

	if err := p.Require(access.CapInvestigate); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("verdict", string(req.Verdict)))

	var policy *models.Policy
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if locked.Status != models.StatusUnderInvestigation {
			return dErrors.Newf(dErrors.CodeStateConflict, "policy is %s, not under investigation", locked.Status)
		}
		inv, err := s.loadInvestigation(txCtx, locked.ID)
		if err != nil {
			return err
		}
		if err := inv.CanComplete(); err != nil {
			return err
		}
		inv.ApplyVerdict(req.Verdict, req.RiskLevel, req.RejectionReason, req.Notes, p.UserID, now(txCtx))
		if err := s.store.UpdateInvestigation(txCtx, inv); err != nil {
			return storeErr(err, "failed to update investigation")
		}
		if err := s.advance(txCtx, p, locked, edge{target: req.Verdict.Target()}); err != nil {
			return err
		}
		policy, out = locked, inv

		details := map[string]any{
			"investigation_id": inv.ID.String(),
			"verdict":          string(inv.Verdict),
			"risk_level":       string(inv.RiskLevel),
			"from":             string(models.StatusUnderInvestigation),
			"to":               string(locked.Status),
		}
		if inv.ResponseTimeHours != nil {
			details["response_time_hours"] = *inv.ResponseTimeHours
		}
		if inv.RejectionReason != "" {
			details["rejection_reason"] = inv.RejectionReason
		}
		return s.appendActivity(txCtx, locked.ID, models.ActionInvestigationCompleted,
			"Investigation completed: "+string(inv.Verdict), details, performerFor(txCtx, p))
	})
	if err != nil {
		s.metrics.IncrementTransitionRejected(string(req.Verdict.Target()), string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.transitioned(ctx, p, policy, models.StatusUnderInvestigation)
	return out, nil
}

// RecordLandlordDecision stores the landlord's answer to a rejected
// investigation, at most once. PROCEED re-opens the policy into
// CONTRACT_PENDING; REJECT leaves it in INVESTIGATION_REJECTED. Actor tokens
// must belong to the current primary landlord.
func (s *Service) RecordLandlordDecision(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.LandlordDecisionRequest) (out *models.Investigation, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.RecordLandlordDecision", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "RecordLandlordDecision", start, err) }()

	if err := p.Require(access.CapLandlordDecision); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var policy *models.Policy
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if locked.Status != models.StatusInvestigationRejected {
			return dErrors.Newf(dErrors.CodeStateConflict, "policy is %s, not investigation rejected", locked.Status)
		}
		if err := s.checkLandlordPrincipal(txCtx, p, locked.ID); err != nil {
			return err
		}
		inv, err := s.loadInvestigation(txCtx, locked.ID)
		if err != nil {
			return err
		}
		if err := inv.CanRecordLandlordDecision(); err != nil {
			return err
		}
		inv.ApplyLandlordDecision(req.Decision, req.Notes, now(txCtx))
		if err := s.store.UpdateInvestigation(txCtx, inv); err != nil {
			return storeErr(err, "failed to update investigation")
		}

		details := map[string]any{
			"investigation_id": inv.ID.String(),
			"decision":         string(inv.LandlordDecision),
			"notes":            inv.LandlordNotes,
		}
		if req.Decision == models.LandlordProceed {
			if err := s.advance(txCtx, p, locked, edge{target: models.StatusContractPending}); err != nil {
				return err
			}
			details["from"] = string(models.StatusInvestigationRejected)
			details["to"] = string(locked.Status)
		} else {
			locked.Touch(now(txCtx))
			if err := s.store.UpdatePolicy(txCtx, locked); err != nil {
				return storeErr(err, "failed to update policy")
			}
		}
		policy, out = locked, inv
		return s.appendActivity(txCtx, locked.ID, models.ActionLandlordDecision,
			"Landlord decision: "+string(req.Decision), details, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}
	if policy.Status != models.StatusInvestigationRejected {
		s.transitioned(ctx, p, policy, models.StatusInvestigationRejected)
	} else {
		s.logAudit(ctx, string(models.ActionLandlordDecision),
			"policy_id", policy.ID.String(),
			"decision", string(req.Decision),
			"user_id", auditUser(p),
		)
	}
	return out, nil
}

// GetInvestigation returns the policy's investigation or NotFound when none
// has been started.
func (s *Service) GetInvestigation(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Investigation, error) {
	if _, err := s.GetPolicy(ctx, p, policyID); err != nil {
		return nil, err
	}
	inv, err := s.store.GetInvestigation(ctx, policyID)
	if err != nil {
		return nil, notFoundOr(err, "investigation")
	}
	return inv, nil
}

// checkLandlordPrincipal binds an actor-token decision to the current
// primary landlord and its live token.
func (s *Service) checkLandlordPrincipal(txCtx context.Context, p access.Principal, policyID id.PolicyID) error {
	if !p.IsActor() {
		return nil
	}
	actors, err := s.store.ListActors(txCtx, policyID)
	if err != nil {
		return storeErr(err, "failed to load actors")
	}
	landlord := models.PrimaryLandlord(actors)
	if landlord == nil || landlord.ID != p.ActorID {
		return dErrors.New(dErrors.CodeForbidden, "only the primary landlord can decide")
	}
	return p.OwnsActor(landlord.ID, landlord.TokenID, false)
}
