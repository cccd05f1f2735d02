package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"leasecover/internal/access"
	"leasecover/internal/notification"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	strutil "leasecover/pkg/platform/strings"
)

// SendInvitations issues a fresh access token to each target actor and
// delivers the invitations after commit. Re-inviting an actor revokes its
// previous token. When a DRAFT policy's primary landlord and tenant both hold
// invitations afterwards, the policy moves to COLLECTING_INFO and the single
// invitations_sent entry records the status change.
func (s *Service) SendInvitations(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.SendInvitationsRequest) (out *models.InvitationResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.SendInvitations", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "SendInvitations", start, err) }()

	if err := p.Require(access.CapSendInvitations); err != nil {
		return nil, err
	}
	if s.tokens == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "actor token issuer is not configured")
	}
	if req == nil {
		req = &models.SendInvitationsRequest{}
	}

	var (
		policy     *models.Policy
		from       models.Status
		deliveries []notification.Invitation
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if !locked.Status.CollectsActorInput() {
			return dErrors.Newf(dErrors.CodeStateConflict, "invitations cannot be sent while the policy is %s", locked.Status)
		}
		targets, err := s.invitationTargets(txCtx, locked, req.ActorIDs)
		if err != nil {
			return err
		}

		at := now(txCtx)
		perf := performerFor(txCtx, p)
		actorIDs := make([]string, 0, len(targets))
		for _, actor := range targets {
			issued, err := s.tokens.IssueActorToken(actor.ID, locked.ID, s.invitationTTL)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue actor token")
			}
			actor.ApplyInvitation(issued.ID, issued.ExpiresAt, at)
			if err := s.store.UpdateActor(txCtx, actor); err != nil {
				return storeErr(err, "failed to update actor")
			}
			actorIDs = append(actorIDs, actor.ID.String())
			deliveries = append(deliveries, notification.Invitation{
				PolicyID:       locked.ID,
				PolicyNumber:   locked.Number,
				ActorID:        actor.ID,
				ActorType:      string(actor.Type),
				RecipientEmail: actor.Contact.Email,
				RecipientName:  actor.FullName(),
				Token:          issued.Token,
				ExpiresAt:      issued.ExpiresAt,
				InitiatedBy:    perf.ID,
			})
		}

		from = locked.Status
		locked.InvitationsSentAt = &at
		details := map[string]any{"actor_ids": actorIDs, "count": len(actorIDs)}
		moved := false
		if locked.Status == models.StatusDraft && s.invitationsSent(txCtx, locked) == nil {
			if err := s.advance(txCtx, p, locked, edge{target: models.StatusCollectingInfo}); err != nil {
				return err
			}
			moved = true
			details["from"] = string(from)
			details["to"] = string(locked.Status)
		}
		if !moved {
			locked.Touch(at)
			if err := s.store.UpdatePolicy(txCtx, locked); err != nil {
				return storeErr(err, "failed to update policy")
			}
		}
		policy = locked
		return s.appendActivity(txCtx, locked.ID, models.ActionInvitationsSent, "Invitations sent", details, perf)
	})
	if err != nil {
		return nil, err
	}
	if policy.Status != from {
		s.transitioned(ctx, p, policy, from)
	}

	out = &models.InvitationResult{Policy: policy, Invitations: s.deliverInvitations(ctx, p, policy.ID, deliveries)}
	return out, nil
}

// invitationTargets defaults to every non-archived actor that has not yet
// completed its information. On a DRAFT policy the primary landlord and the
// tenant are also included while uninvited, even if staff already completed
// them, because leaving DRAFT requires both to have been invited.
func (s *Service) invitationTargets(txCtx context.Context, policy *models.Policy, requested []id.ActorID) ([]*models.Actor, error) {
	actors, err := s.store.ListActors(txCtx, policy.ID)
	if err != nil {
		return nil, storeErr(err, "failed to load actors")
	}
	var targets []*models.Actor
	if len(requested) == 0 {
		gating := map[id.ActorID]bool{}
		if policy.Status == models.StatusDraft {
			if landlord := models.PrimaryLandlord(actors); landlord != nil {
				gating[landlord.ID] = true
			}
			if tenants := models.ActorsOfType(actors, models.ActorTenant); len(tenants) > 0 {
				gating[tenants[0].ID] = true
			}
		}
		for _, a := range actors {
			if a.IsArchived() {
				continue
			}
			if !a.InformationComplete || (gating[a.ID] && a.InvitationSentAt == nil) {
				targets = append(targets, a)
			}
		}
	} else {
		byID := make(map[id.ActorID]*models.Actor, len(actors))
		for _, a := range actors {
			byID[a.ID] = a
		}
		for _, actorID := range strutil.Unique(requested) {
			a, ok := byID[actorID]
			if !ok {
				return nil, dErrors.Newf(dErrors.CodeNotFound, "actor %s not found on this policy", actorID)
			}
			if a.IsArchived() {
				return nil, dErrors.Newf(dErrors.CodeValidation, "actor %s has been replaced", actorID)
			}
			targets = append(targets, a)
		}
	}
	if len(targets) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no actors to invite")
	}
	return targets, nil
}

// deliverInvitations sends concurrently. A failed delivery is recorded as an
// invitation_failed entry and reported in the outcome; it never fails the call.
func (s *Service) deliverInvitations(ctx context.Context, p access.Principal, policyID id.PolicyID, deliveries []notification.Invitation) []models.InvitationOutcome {
	outcomes := make([]models.InvitationOutcome, len(deliveries))
	var g errgroup.Group
	g.SetLimit(invitationConcurrency)
	for i, inv := range deliveries {
		g.Go(func() error {
			outcomes[i] = models.InvitationOutcome{ActorID: inv.ActorID, Email: inv.RecipientEmail, Delivered: true}
			if err := s.notifier.SendInvitation(ctx, inv); err != nil {
				outcomes[i].Delivered = false
				outcomes[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	perf := performerFor(ctx, p)
	for _, o := range outcomes {
		if o.Delivered {
			s.metrics.IncrementInvitation("delivered")
			continue
		}
		s.metrics.IncrementInvitation("failed")
		s.logger.WarnContext(ctx, "invitation delivery failed",
			"policy_id", policyID.String(),
			"actor_id", o.ActorID.String(),
			"error", o.Error,
		)
		s.recordAfterCommit(ctx, policyID, models.ActionInvitationFailed, "Invitation could not be delivered",
			map[string]any{"actor_id": o.ActorID.String(), "error": o.Error}, perf)
	}
	return outcomes
}
