package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	"leasecover/internal/policy/progress"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
	"leasecover/pkg/requestcontext"
)

const defaultExpiryBatch = 100

// transitionCapabilities is checked at the boundary, before any row is read.
var transitionCapabilities = map[models.Status]access.Capability{
	models.StatusDraft:                 access.CapAdvancePolicy,
	models.StatusCollectingInfo:        access.CapSendInvitations,
	models.StatusUnderInvestigation:    access.CapInvestigate,
	models.StatusPendingApproval:       access.CapInvestigate,
	models.StatusInvestigationRejected: access.CapInvestigate,
	models.StatusContractPending:       access.CapAdvancePolicy,
	models.StatusContractUploaded:      access.CapUploadContract,
	models.StatusContractSigned:        access.CapAdvancePolicy,
	models.StatusActive:                access.CapAdvancePolicy,
	models.StatusExpired:               access.CapAdvancePolicy,
	models.StatusCancelled:             access.CapCancelPolicy,
}

var transitionActions = map[models.Status]models.Action{
	models.StatusUnderInvestigation: models.ActionInvestigationStarted,
	models.StatusContractPending:    models.ActionPolicyApproved,
	models.StatusContractUploaded:   models.ActionContractUploaded,
	models.StatusContractSigned:     models.ActionContractSigned,
	models.StatusActive:             models.ActionPolicyActivated,
	models.StatusExpired:            models.ActionPolicyExpired,
	models.StatusCancelled:          models.ActionPolicyCancelled,
}

// edge is one requested move of the state machine.
type edge struct {
	target  models.Status
	reason  models.CancellationReason
	comment string
}

func transitionAction(from, to models.Status) models.Action {
	if to == models.StatusContractPending && from == models.StatusInvestigationRejected {
		return models.ActionStatusChanged
	}
	if action, ok := transitionActions[to]; ok {
		return action
	}
	return models.ActionStatusChanged
}

func transitionDetails(from models.Status, policy *models.Policy) map[string]any {
	details := map[string]any{
		"from": string(from),
		"to":   string(policy.Status),
	}
	if policy.Status == models.StatusCancelled {
		details["reason"] = string(policy.CancellationReason)
		details["comment"] = policy.CancellationComment
	}
	return details
}

func describeTransition(from, to models.Status) string {
	return fmt.Sprintf("Policy moved from %s to %s", from, to)
}

// Transition is the generic entry into the state machine. Requesting the
// status the policy already has is a no-op that records nothing.
func (s *Service) Transition(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.TransitionRequest) (out *models.Policy, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.Transition", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "Transition", start, err) }()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("target", string(req.Target)))
	if err := p.Require(transitionCapabilities[req.Target]); err != nil {
		return nil, err
	}

	var from models.Status
	changed := false
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		from = policy.Status
		out = policy
		if policy.Status == req.Target {
			return nil
		}
		if err := s.advance(txCtx, p, policy, edge{target: req.Target, reason: req.Reason, comment: req.Comment}); err != nil {
			return err
		}
		changed = true
		return s.appendActivity(txCtx, policy.ID, transitionAction(from, req.Target),
			describeTransition(from, req.Target), transitionDetails(from, policy), performerFor(txCtx, p))
	})
	if err != nil {
		s.metrics.IncrementTransitionRejected(string(req.Target), string(dErrors.CodeOf(err)))
		return nil, err
	}
	if changed {
		s.transitioned(ctx, p, out, from)
	}
	return out, nil
}

// ApprovePolicy records staff approval: PENDING_APPROVAL to CONTRACT_PENDING.
func (s *Service) ApprovePolicy(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	return s.Transition(ctx, p, policyID, &models.TransitionRequest{Target: models.StatusContractPending})
}

func (s *Service) MarkContractSigned(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	return s.Transition(ctx, p, policyID, &models.TransitionRequest{Target: models.StatusContractSigned})
}

// ActivatePolicy requires every payment of the policy to be completed.
func (s *Service) ActivatePolicy(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	return s.Transition(ctx, p, policyID, &models.TransitionRequest{Target: models.StatusActive})
}

// CancelPolicy needs a reason code and a comment. Cancelling a cancelled
// policy is a no-op; an expired policy cannot be cancelled.
func (s *Service) CancelPolicy(ctx context.Context, p access.Principal, policyID id.PolicyID, reason models.CancellationReason, comment string) (*models.Policy, error) {
	return s.Transition(ctx, p, policyID, &models.TransitionRequest{Target: models.StatusCancelled, Reason: reason, Comment: comment})
}

// ExpirePolicy expires an ACTIVE policy whose term has ended.
func (s *Service) ExpirePolicy(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	return s.Transition(ctx, p, policyID, &models.TransitionRequest{Target: models.StatusExpired})
}

// ExpireDuePolicies expires every ACTIVE policy whose end date is not after
// at. Each policy is its own unit of work, so one failure does not hold back
// the rest of the batch.
func (s *Service) ExpireDuePolicies(ctx context.Context, at time.Time) (expired int, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.ExpireDuePolicies")
	defer func() { s.finish(span, "ExpireDuePolicies", start, err) }()

	ctx = requestcontext.WithTime(ctx, at)
	due, err := s.store.ListDueForExpiry(ctx, at, s.expiryBatch)
	if err != nil {
		return 0, storeErr(err, "failed to list policies due for expiry")
	}

	var errs []error
	for _, policyID := range due {
		var policy *models.Policy
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			locked, err := s.store.LockPolicy(txCtx, policyID)
			if err != nil {
				return notFoundOr(err, "policy")
			}
			// Re-checked under the lock: a concurrent cancel wins.
			if !locked.IsExpiredAt(at) {
				return nil
			}
			if err := s.advance(txCtx, access.System, locked, edge{target: models.StatusExpired}); err != nil {
				return err
			}
			policy = locked
			return s.appendActivity(txCtx, locked.ID, models.ActionPolicyExpired,
				"Policy term ended", transitionDetails(models.StatusActive, locked), models.SystemPerformer)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("expire policy %s: %w", policyID, err))
			continue
		}
		if policy != nil {
			expired++
			s.metrics.IncrementExpired()
			s.transitioned(ctx, access.System, policy, models.StatusActive)
		}
	}
	return expired, errors.Join(errs...)
}

// advance moves a locked policy along one edge: it checks the edge and its
// guard, applies the edge's side effects and writes the policy. The caller
// records the activity entry.
func (s *Service) advance(txCtx context.Context, p access.Principal, policy *models.Policy, e edge) error {
	from := policy.Status
	if !from.CanTransitionTo(e.target) {
		return dErrors.Newf(dErrors.CodeStateConflict, "policy cannot move from %s to %s", from, e.target)
	}
	at := now(txCtx)
	if err := s.checkGuard(txCtx, policy, e.target, at); err != nil {
		return err
	}
	if err := s.applyEdge(txCtx, p, policy, e, at); err != nil {
		return err
	}
	policy.Status = e.target
	policy.Touch(at)
	if err := s.store.UpdatePolicy(txCtx, policy); err != nil {
		return storeErr(err, "failed to update policy")
	}
	return nil
}

func (s *Service) checkGuard(txCtx context.Context, policy *models.Policy, target models.Status, at time.Time) error {
	switch target {
	case models.StatusCollectingInfo:
		return s.invitationsSent(txCtx, policy)
	case models.StatusUnderInvestigation:
		return s.requiredActorsReady(txCtx, policy)
	case models.StatusPendingApproval, models.StatusInvestigationRejected:
		return s.verdictLeadsTo(txCtx, policy, target)
	case models.StatusContractPending:
		if policy.Status == models.StatusInvestigationRejected {
			return s.landlordProceeds(txCtx, policy)
		}
	case models.StatusContractUploaded:
		if _, err := s.store.CurrentContract(txCtx, policy.ID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeStateConflict, "no contract has been uploaded")
			}
			return storeErr(err, "failed to load current contract")
		}
	case models.StatusActive:
		return s.fullyPaid(txCtx, policy)
	case models.StatusExpired:
		if policy.Terms.EndDate.After(at) {
			return dErrors.Newf(dErrors.CodeStateConflict, "policy term ends on %s", policy.Terms.EndDate.Format(time.DateOnly))
		}
	}
	return nil
}

func (s *Service) applyEdge(txCtx context.Context, p access.Principal, policy *models.Policy, e edge, at time.Time) error {
	switch e.target {
	case models.StatusUnderInvestigation:
		inv := models.NewInvestigation(policy.ID, p.UserID, at)
		if err := s.store.CreateInvestigation(txCtx, inv); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeStateConflict, "policy already has an investigation")
			}
			return storeErr(err, "failed to create investigation")
		}
		policy.InvestigationStartedAt = &at
	case models.StatusPendingApproval, models.StatusInvestigationRejected:
		policy.InvestigationCompletedAt = &at
	case models.StatusContractPending:
		if policy.Status == models.StatusPendingApproval {
			policy.ApprovedAt = &at
			if !p.UserID.IsNil() {
				approver := p.UserID
				policy.ApprovedBy = &approver
			}
		}
	case models.StatusContractUploaded:
		policy.ContractUploadedAt = &at
	case models.StatusContractSigned:
		policy.ContractSignedAt = &at
	case models.StatusActive:
		policy.ActivatedAt = &at
	case models.StatusExpired:
		policy.ExpiredAt = &at
	case models.StatusCancelled:
		policy.CancelledAt = &at
		policy.CancellationReason = e.reason
		policy.CancellationComment = e.comment
	}
	return nil
}

func (s *Service) invitationsSent(txCtx context.Context, policy *models.Policy) error {
	actors, err := s.store.ListActors(txCtx, policy.ID)
	if err != nil {
		return storeErr(err, "failed to load actors")
	}
	if landlord := models.PrimaryLandlord(actors); landlord == nil || landlord.InvitationSentAt == nil {
		return dErrors.New(dErrors.CodeStateConflict, "primary landlord has not been invited")
	}
	tenants := models.ActorsOfType(actors, models.ActorTenant)
	if len(tenants) == 0 || tenants[0].InvitationSentAt == nil {
		return dErrors.New(dErrors.CodeStateConflict, "tenant has not been invited")
	}
	return nil
}

// requiredActorsReady is the investigation gate: every non-archived actor of
// every type the guarantor type requires must be ready, and each required
// type must be present.
func (s *Service) requiredActorsReady(txCtx context.Context, policy *models.Policy) error {
	actors, err := s.store.ListActors(txCtx, policy.ID)
	if err != nil {
		return storeErr(err, "failed to load actors")
	}
	docs, err := s.store.ListDocumentsByPolicy(txCtx, policy.ID)
	if err != nil {
		return storeErr(err, "failed to load documents")
	}
	refs, err := s.store.ListReferencesByPolicy(txCtx, policy.ID)
	if err != nil {
		return storeErr(err, "failed to load references")
	}
	docsByActor := make(map[id.ActorID][]*models.Document)
	for _, d := range docs {
		docsByActor[d.ActorID] = append(docsByActor[d.ActorID], d)
	}
	refsByActor := make(map[id.ActorID][]*models.Reference)
	for _, r := range refs {
		refsByActor[r.ActorID] = append(refsByActor[r.ActorID], r)
	}

	for _, t := range models.AllActorTypes {
		if !policy.GuarantorType.Requires(t) {
			continue
		}
		ofType := models.ActorsOfType(actors, t)
		if len(ofType) == 0 {
			return dErrors.Newf(dErrors.CodeStateConflict, "policy has no %s", t.Label())
		}
		for _, a := range ofType {
			if !progress.Compute(a, docsByActor[a.ID], refsByActor[a.ID]).Ready {
				return dErrors.Newf(dErrors.CodeStateConflict, "%s is not ready", a.DisplayName())
			}
		}
	}
	return nil
}

func (s *Service) loadInvestigation(txCtx context.Context, policyID id.PolicyID) (*models.Investigation, error) {
	inv, err := s.store.GetInvestigation(txCtx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeStateConflict, "investigation has not started")
		}
		return nil, storeErr(err, "failed to load investigation")
	}
	return inv, nil
}

func (s *Service) verdictLeadsTo(txCtx context.Context, policy *models.Policy, target models.Status) error {
	inv, err := s.loadInvestigation(txCtx, policy.ID)
	if err != nil {
		return err
	}
	if inv.Verdict == "" {
		return dErrors.New(dErrors.CodeStateConflict, "investigation has no verdict")
	}
	if inv.Verdict.Target() != target {
		return dErrors.Newf(dErrors.CodeStateConflict, "investigation verdict %s leads to %s", inv.Verdict, inv.Verdict.Target())
	}
	return nil
}

func (s *Service) landlordProceeds(txCtx context.Context, policy *models.Policy) error {
	inv, err := s.loadInvestigation(txCtx, policy.ID)
	if err != nil {
		return err
	}
	if inv.LandlordDecision != models.LandlordProceed {
		return dErrors.New(dErrors.CodeStateConflict, "landlord has not chosen to proceed")
	}
	return nil
}

func (s *Service) fullyPaid(txCtx context.Context, policy *models.Policy) error {
	payments, err := s.store.ListPayments(txCtx, policy.ID)
	if err != nil {
		return storeErr(err, "failed to load payments")
	}
	if models.FullyPaid(payments) {
		return nil
	}
	completed := 0
	for _, pay := range payments {
		if pay.Status == models.PaymentCompleted {
			completed++
		}
	}
	return dErrors.Newf(dErrors.CodeStateConflict, "policy is not fully paid: %d of %d payments completed", completed, len(payments))
}

func (s *Service) transitioned(ctx context.Context, p access.Principal, policy *models.Policy, from models.Status) {
	s.metrics.IncrementTransition(string(from), string(policy.Status))
	s.logAudit(ctx, "policy_transitioned",
		"policy_id", policy.ID.String(),
		"from", string(from),
		"to", string(policy.Status),
		"user_id", auditUser(p),
	)
}
