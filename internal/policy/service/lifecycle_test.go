package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/requestcontext"
)

// =============================================================================
// Creation & Invitations
// =============================================================================

func (s *ServiceSuite) TestCreatePolicy() {
	policy := s.createPolicy(models.GuarantorNone)

	s.Equal(models.StatusDraft, policy.Status)
	s.Regexp(`^POL-\d{8}-[0-9A-F]{6}$`, policy.Number)
	s.Equal(s.broker.UserID, policy.CreatedBy)
	s.Equal(startDate.AddDate(0, 12, 0), policy.Terms.EndDate)
	s.Equal("216000", policy.Terms.TotalPrice.String())

	landlord := s.actorOfType(policy.ID, models.ActorLandlord)
	s.True(landlord.IsPrimary)
	s.Equal("landlord@example.com", landlord.Contact.Email)
	s.Len(models.ActorsOfType(s.actors(policy.ID), models.ActorTenant), 1)
	s.Len(s.activities(policy.ID, models.ActionPolicyCreated), 1)
}

func (s *ServiceSuite) TestCreatePolicy_Validation() {
	s.Run("rent must be positive", func() {
		req := createRequest(models.GuarantorNone)
		req.RentAmount = req.RentAmount.Neg()
		_, err := s.service.CreatePolicy(s.ctx, s.broker, req)
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("tenant email is required", func() {
		req := createRequest(models.GuarantorNone)
		req.Tenant.Email = ""
		_, err := s.service.CreatePolicy(s.ctx, s.broker, req)
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("nil request", func() {
		_, err := s.service.CreatePolicy(s.ctx, s.broker, nil)
		s.requireCode(err, dErrors.CodeBadRequest)
	})
}

func (s *ServiceSuite) TestSendInvitations_MovesDraftToCollecting() {
	policy := s.createPolicy(models.GuarantorNone)

	res := s.invite(policy.ID)

	s.Equal(models.StatusCollectingInfo, res.Policy.Status)
	s.Require().Len(res.Invitations, 2)
	for _, o := range res.Invitations {
		s.True(o.Delivered, "invitation to %s", o.Email)
	}
	sent := s.notifier.Invitations()
	s.Require().Len(sent, 2)
	for _, inv := range sent {
		s.NotEmpty(inv.Token)
		s.Equal(policy.Number, inv.PolicyNumber)
	}
	s.Len(s.activities(policy.ID, models.ActionInvitationsSent), 1)
	s.Empty(s.activities(policy.ID, models.ActionStatusChanged), "the invitations entry records the status change")
}

func (s *ServiceSuite) TestSendInvitations_DraftInvitesCompletedTenant() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)

	req := &models.UpdateActorRequest{
		Identity: &models.Identity{FirstName: "Tomás", PaternalLastName: "Ruiz", Nationality: models.NationalityMexican},
		Contact:  &models.Contact{Email: "tenant@example.com", Phone: "5555", Address: "Insurgentes Sur 1000, CDMX"},
	}
	if tenant.Type.Traits().ChoosesGuarantee {
		method := models.GuaranteeIncome
		req.GuaranteeMethod = &method
	}
	_, err := s.service.UpdateActor(s.ctx, s.staff, tenant.ID, req)
	s.Require().NoError(err)
	submitted, err := s.service.SubmitActor(s.ctx, s.staff, tenant.ID)
	s.Require().NoError(err)
	s.Require().True(submitted.InformationComplete)

	res := s.invite(policy.ID)

	s.Equal(models.StatusCollectingInfo, res.Policy.Status)
	s.Len(res.Invitations, 2)
	s.NotNil(s.actorOfType(policy.ID, models.ActorTenant).InvitationSentAt)

	again := s.invite(policy.ID)
	s.Require().Len(again.Invitations, 1, "outside DRAFT completed actors are skipped")
	s.Equal("landlord@example.com", again.Invitations[0].Email)
}

func (s *ServiceSuite) TestSendInvitations_PartialDeliveryFailure() {
	policy := s.createPolicy(models.GuarantorNone)
	s.notifier.FailFor("tenant@example.com", errors.New("mailbox unavailable"))

	res := s.invite(policy.ID)

	s.Equal(models.StatusCollectingInfo, res.Policy.Status, "delivery failures do not undo the invitation")
	delivered := map[string]bool{}
	for _, o := range res.Invitations {
		delivered[o.Email] = o.Delivered
		if !o.Delivered {
			s.Contains(o.Error, "mailbox unavailable")
		}
	}
	s.Equal(map[string]bool{"landlord@example.com": true, "tenant@example.com": false}, delivered)

	failed := s.activities(policy.ID, models.ActionInvitationFailed)
	s.Require().Len(failed, 1)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	s.Equal(tenant.ID.String(), failed[0].Details["actor_id"])
	s.NotEmpty(tenant.TokenID, "token stays issued after a failed delivery")
}

func (s *ServiceSuite) TestSendInvitations_RequiresCollectingPhase() {
	policy := s.contractPendingPolicy()

	_, err := s.service.SendInvitations(s.ctx, s.broker, policy.ID, nil)
	s.requireCode(err, dErrors.CodeStateConflict)
}

// =============================================================================
// State Machine
// =============================================================================

func (s *ServiceSuite) TestTransition_RejectsIllegalEdges() {
	policy := s.createPolicy(models.GuarantorNone)

	for _, target := range []models.Status{
		models.StatusUnderInvestigation,
		models.StatusContractPending,
		models.StatusActive,
		models.StatusExpired,
	} {
		_, err := s.service.Transition(s.ctx, s.staff, policy.ID, &models.TransitionRequest{Target: target})
		s.requireCode(err, dErrors.CodeStateConflict)
	}
	s.Equal(models.StatusDraft, s.policy(policy.ID).Status)
	s.Empty(s.activities(policy.ID, models.ActionStatusChanged))
}

func (s *ServiceSuite) TestTransition_DraftNeedsInvitations() {
	policy := s.createPolicy(models.GuarantorNone)

	_, err := s.service.Transition(s.ctx, s.staff, policy.ID, &models.TransitionRequest{Target: models.StatusCollectingInfo})
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Contains(dErrors.MessageOf(err), "primary landlord has not been invited")
}

func (s *ServiceSuite) TestTransition_SameStatusIsNoop() {
	policy := s.createPolicy(models.GuarantorNone)
	before, err := s.store.ListActivities(s.ctx, policy.ID)
	s.Require().NoError(err)

	got, err := s.service.Transition(s.ctx, s.staff, policy.ID, &models.TransitionRequest{Target: models.StatusDraft})
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, got.Status)

	after, err := s.store.ListActivities(s.ctx, policy.ID)
	s.Require().NoError(err)
	s.Len(after, len(before))
}

func (s *ServiceSuite) TestHappyPath() {
	policy := s.activePolicy()

	s.Equal(models.StatusActive, policy.Status)
	s.NotNil(policy.ApprovedAt)
	s.Equal(&s.staff.UserID, policy.ApprovedBy)
	s.NotNil(policy.ContractSignedAt)
	s.NotNil(policy.ActivatedAt)
	s.NotNil(policy.PaymentsCompletedAt)

	for _, action := range []models.Action{
		models.ActionPolicyCreated,
		models.ActionInvitationsSent,
		models.ActionInvestigationStarted,
		models.ActionInvestigationCompleted,
		models.ActionPolicyApproved,
		models.ActionContractUploaded,
		models.ActionContractSigned,
		models.ActionAllPaymentsCompleted,
		models.ActionPolicyActivated,
	} {
		s.Len(s.activities(policy.ID, action), 1, "activity %s", action)
	}
}

func (s *ServiceSuite) TestActivation_RequiresFullPayment() {
	policy := s.contractPendingPolicy()
	_, err := s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("contrato.pdf"), "")
	s.Require().NoError(err)
	_, err = s.service.MarkContractSigned(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)

	_, err = s.service.ActivatePolicy(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Contains(dErrors.MessageOf(err), "0 of 0")

	s.createCardPayment(policy.ID, "4500")
	_, err = s.service.ActivatePolicy(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Contains(dErrors.MessageOf(err), "0 of 1")
}

func (s *ServiceSuite) TestCancelPolicy() {
	s.Run("reason and comment are required", func() {
		policy := s.createPolicy(models.GuarantorNone)
		_, err := s.service.CancelPolicy(s.ctx, s.staff, policy.ID, "", "client changed their mind")
		s.requireCode(err, dErrors.CodeValidation)
		_, err = s.service.CancelPolicy(s.ctx, s.staff, policy.ID, models.CancelClientRequest, " ")
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("cancelled policies are frozen", func() {
		policy := s.createPolicy(models.GuarantorJointObligor)
		got, err := s.service.CancelPolicy(s.ctx, s.staff, policy.ID, models.CancelClientRequest, "client changed their mind")
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, got.Status)
		s.Equal(models.CancelClientRequest, got.CancellationReason)
		s.NotNil(got.CancelledAt)

		again, err := s.service.CancelPolicy(s.ctx, s.staff, policy.ID, models.CancelClientRequest, "again")
		s.Require().NoError(err, "cancelling twice is a no-op")
		s.Equal("client changed their mind", again.CancellationComment)
		s.Len(s.activities(policy.ID, models.ActionPolicyCancelled), 1)

		_, err = s.service.AddActor(s.ctx, s.broker, policy.ID, &models.AddActorRequest{
			Type:   models.ActorJointObligor,
			Invite: models.ActorInvite{Email: "late@example.com"},
		})
		s.requireCode(err, dErrors.CodeStateConflict)
		_, err = s.service.CreatePayment(s.ctx, s.broker, policy.ID, &models.CreatePaymentRequest{
			PayerType: models.PayerTenant,
			Subtotal:  got.Terms.RentAmount,
			Method:    models.MethodTransfer,
		})
		s.requireCode(err, dErrors.CodeStateConflict)
	})

	s.Run("brokers cannot cancel", func() {
		policy := s.createPolicy(models.GuarantorNone)
		_, err := s.service.CancelPolicy(s.ctx, s.broker, policy.ID, models.CancelClientRequest, "no")
		s.requireCode(err, dErrors.CodeForbidden)
	})
}

// =============================================================================
// Investigation
// =============================================================================

func (s *ServiceSuite) TestInvestigationGate_MissingGuarantor() {
	policy := s.createPolicy(models.GuarantorJointObligor)
	s.invite(policy.ID)
	for _, a := range s.actors(policy.ID) {
		s.completeActor(s.staff, a.ID)
	}

	_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Contains(dErrors.MessageOf(err), "policy has no joint obligor")
	s.Equal(models.StatusCollectingInfo, s.policy(policy.ID).Status)
}

func (s *ServiceSuite) TestInvestigationGate_NamesBlockingActor() {
	policy := s.createPolicy(models.GuarantorBoth)
	s.addGuarantor(policy.ID, models.ActorJointObligor, "obligor@example.com")
	s.addGuarantor(policy.ID, models.ActorAval, "aval@example.com")
	s.invite(policy.ID)
	for _, a := range s.actors(policy.ID) {
		if a.Type != models.ActorJointObligor {
			s.completeActor(s.staff, a.ID)
		}
	}

	_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Contains(dErrors.MessageOf(err), "joint obligor Gil Soto is not ready")

	s.completeActor(s.staff, s.actorOfType(policy.ID, models.ActorJointObligor).ID)
	inv, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.Equal(models.InvestigationInProgress, inv.State())
	s.Equal(models.StatusUnderInvestigation, s.policy(policy.ID).Status)
}

func (s *ServiceSuite) TestInvestigationGate_ReferencesDoNotBlock() {
	policy := s.collectingPolicy(models.GuarantorNone)
	refs, err := s.service.ListReferences(s.ctx, s.staff, s.actorOfType(policy.ID, models.ActorTenant).ID)
	s.Require().NoError(err)
	s.Empty(refs)

	_, err = s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestCompleteInvestigation_Verdicts() {
	cases := []struct {
		verdict models.Verdict
		reason  string
		status  models.Status
		risk    models.RiskLevel
	}{
		{models.VerdictApproved, "", models.StatusPendingApproval, ""},
		{models.VerdictHighRisk, "", models.StatusPendingApproval, models.RiskHigh},
		{models.VerdictRejected, "insufficient income", models.StatusInvestigationRejected, ""},
	}
	for _, tc := range cases {
		s.Run(string(tc.verdict), func() {
			policy := s.collectingPolicy(models.GuarantorNone)
			_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
			s.Require().NoError(err)

			inv, err := s.service.CompleteInvestigation(s.ctx, s.staff, policy.ID, &models.CompleteInvestigationRequest{
				Verdict:         tc.verdict,
				RejectionReason: tc.reason,
			})
			s.Require().NoError(err)
			s.Equal(tc.risk, inv.RiskLevel)
			s.NotNil(inv.ResponseTimeHours)
			s.Equal(tc.status, s.policy(policy.ID).Status)

			_, err = s.service.CompleteInvestigation(s.ctx, s.staff, policy.ID, &models.CompleteInvestigationRequest{Verdict: models.VerdictApproved})
			s.requireCode(err, dErrors.CodeStateConflict)
		})
	}
}

func (s *ServiceSuite) TestCompleteInvestigation_RejectionNeedsReason() {
	policy := s.collectingPolicy(models.GuarantorNone)
	_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)

	_, err = s.service.CompleteInvestigation(s.ctx, s.staff, policy.ID, &models.CompleteInvestigationRequest{Verdict: models.VerdictRejected})
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestStartInvestigation_OnlyOnce() {
	policy := s.collectingPolicy(models.GuarantorNone)
	_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)

	_, err = s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
}

func (s *ServiceSuite) TestGetInvestigation() {
	policy := s.collectingPolicy(models.GuarantorNone)

	_, err := s.service.GetInvestigation(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeNotFound)

	started, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)

	got, err := s.service.GetInvestigation(s.ctx, s.broker, policy.ID)
	s.Require().NoError(err)
	s.Equal(started.ID, got.ID)
	s.Equal(s.staff.UserID, got.StartedBy)

	other := access.Principal{Role: access.RoleBroker, UserID: id.UserID(uuid.New())}
	_, err = s.service.GetInvestigation(s.ctx, other, policy.ID)
	s.requireCode(err, dErrors.CodeForbidden)
}

func (s *ServiceSuite) TestLandlordDecision() {
	rejected := func() *models.Policy {
		policy := s.collectingPolicy(models.GuarantorNone)
		_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
		s.Require().NoError(err)
		_, err = s.service.CompleteInvestigation(s.ctx, s.staff, policy.ID, &models.CompleteInvestigationRequest{
			Verdict:         models.VerdictRejected,
			RejectionReason: "negative credit history",
		})
		s.Require().NoError(err)
		return s.policy(policy.ID)
	}

	s.Run("primary landlord proceeds", func() {
		policy := rejected()
		landlord := s.actorPrincipal(s.actorOfType(policy.ID, models.ActorLandlord).ID)

		inv, err := s.service.RecordLandlordDecision(s.ctx, landlord, policy.ID, &models.LandlordDecisionRequest{
			Decision: models.LandlordProceed,
			Notes:    "I know the tenant personally",
		})
		s.Require().NoError(err)
		s.Equal(models.LandlordProceed, inv.LandlordDecision)
		s.Equal(models.StatusContractPending, s.policy(policy.ID).Status)
		s.Nil(s.policy(policy.ID).ApprovedAt, "an override is not a staff approval")

		_, err = s.service.RecordLandlordDecision(s.ctx, s.staff, policy.ID, &models.LandlordDecisionRequest{Decision: models.LandlordReject})
		s.requireCode(err, dErrors.CodeStateConflict)
	})

	s.Run("reject keeps the policy rejected", func() {
		policy := rejected()
		_, err := s.service.RecordLandlordDecision(s.ctx, s.staff, policy.ID, &models.LandlordDecisionRequest{Decision: models.LandlordReject})
		s.Require().NoError(err)
		s.Equal(models.StatusInvestigationRejected, s.policy(policy.ID).Status)

		_, err = s.service.RecordLandlordDecision(s.ctx, s.staff, policy.ID, &models.LandlordDecisionRequest{Decision: models.LandlordProceed})
		s.requireCode(err, dErrors.CodeStateConflict)
		s.Contains(dErrors.MessageOf(err), "already recorded")
	})

	s.Run("tenant cannot decide", func() {
		policy := rejected()
		tenant := s.actorPrincipal(s.actorOfType(policy.ID, models.ActorTenant).ID)
		_, err := s.service.RecordLandlordDecision(s.ctx, tenant, policy.ID, &models.LandlordDecisionRequest{Decision: models.LandlordProceed})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("approved investigations cannot be overridden", func() {
		policy := s.contractPendingPolicy()
		_, err := s.service.RecordLandlordDecision(s.ctx, s.staff, policy.ID, &models.LandlordDecisionRequest{Decision: models.LandlordProceed})
		s.requireCode(err, dErrors.CodeStateConflict)
	})
}

// =============================================================================
// Contracts
// =============================================================================

func (s *ServiceSuite) TestUploadContract_Versions() {
	policy := s.contractPendingPolicy()

	first, err := s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("v1.pdf"), "first draft")
	s.Require().NoError(err)
	s.Equal(1, first.Version)
	s.Equal(models.StatusContractUploaded, s.policy(policy.ID).Status)

	second, err := s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("v2.pdf"), "")
	s.Require().NoError(err)
	s.Equal(2, second.Version)
	s.Equal(models.StatusContractUploaded, s.policy(policy.ID).Status)

	current, err := s.service.CurrentContract(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID)

	_, err = s.service.MarkContractSigned(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	_, err = s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("v3.pdf"), "")
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Equal(2, s.files.Len()-s.documentCount(), "the rejected upload is not kept in storage")
}

func (s *ServiceSuite) TestUploadContract_ConcurrentUploadsGetDistinctVersions() {
	policy := s.contractPendingPolicy()
	const uploads = 8

	var wg sync.WaitGroup
	errs := make([]error, uploads)
	for i := range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("contrato.pdf"), "")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		s.Require().NoError(err)
	}

	contracts, err := s.service.ListContracts(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.Require().Len(contracts, uploads)
	versions := map[int]bool{}
	current := 0
	for _, c := range contracts {
		versions[c.Version] = true
		if c.IsCurrent {
			current++
			s.Equal(uploads, c.Version, "the newest version is current")
		}
	}
	s.Len(versions, uploads)
	s.Equal(1, current)
}

func (s *ServiceSuite) TestUploadContract_BeforeApproval() {
	policy := s.collectingPolicy(models.GuarantorNone)
	_, err := s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("contrato.pdf"), "")
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Equal(s.documentCount(), s.files.Len())
}

// documentCount is the number of stored actor documents across all policies.
func (s *ServiceSuite) documentCount() int {
	policies, err := s.store.ListPolicies(s.ctx, models.PolicyFilter{Limit: models.MaxListLimit})
	s.Require().NoError(err)
	n := 0
	for _, p := range policies {
		docs, err := s.store.ListDocumentsByPolicy(s.ctx, p.ID)
		s.Require().NoError(err)
		n += len(docs)
	}
	return n
}

// =============================================================================
// Expiry
// =============================================================================

func (s *ServiceSuite) TestExpiry() {
	policy := s.activePolicy()
	end := policy.Terms.EndDate

	early := requestcontext.WithTime(s.ctx, end.AddDate(0, 0, -1))
	_, err := s.service.ExpirePolicy(early, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)

	n, err := s.service.ExpireDuePolicies(s.ctx, end.AddDate(0, 0, -1))
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.service.ExpireDuePolicies(s.ctx, end)
	s.Require().NoError(err)
	s.Equal(1, n)

	expired := s.policy(policy.ID)
	s.Equal(models.StatusExpired, expired.Status)
	s.Require().NotNil(expired.ExpiredAt)
	s.True(expired.ExpiredAt.Equal(end))
	entries := s.activities(policy.ID, models.ActionPolicyExpired)
	s.Require().Len(entries, 1)
	s.Equal(models.PerformerSystem, entries[0].PerformedByType)

	n, err = s.service.ExpireDuePolicies(s.ctx, end.AddDate(0, 1, 0))
	s.Require().NoError(err)
	s.Zero(n, "expired policies are not picked up again")

	_, err = s.service.CancelPolicy(s.ctx, s.staff, policy.ID, models.CancelClientRequest, "too late")
	s.requireCode(err, dErrors.CodeStateConflict)
}

func (s *ServiceSuite) TestExpireDuePolicies_CancelledContext() {
	s.activePolicy()
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.service.ExpireDuePolicies(ctx, startDate.AddDate(2, 0, 0))
	s.Error(err)
}
