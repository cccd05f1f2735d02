package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// rawToken returns the bearer token of the latest invitation sent to actorID.
func (s *ServiceSuite) rawToken(actorID id.ActorID) string {
	sent := s.notifier.Invitations()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].ActorID == actorID {
			return sent[i].Token
		}
	}
	s.FailNow("no invitation recorded for actor")
	return ""
}

// =============================================================================
// Broker Scope
// =============================================================================

func (s *ServiceSuite) TestBrokerScope() {
	mine := s.createPolicy(models.GuarantorNone)
	other := access.Principal{Role: access.RoleBroker, UserID: id.UserID(uuid.New())}
	theirs, err := s.service.CreatePolicy(s.ctx, other, createRequest(models.GuarantorNone))
	s.Require().NoError(err)

	_, err = s.service.GetPolicy(s.ctx, s.broker, theirs.ID)
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.SendInvitations(s.ctx, s.broker, theirs.ID, nil)
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.GetActor(s.ctx, s.broker, s.actorOfType(theirs.ID, models.ActorTenant).ID)
	s.requireCode(err, dErrors.CodeForbidden)

	listed, err := s.service.ListPolicies(s.ctx, s.broker, models.PolicyFilter{})
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(mine.ID, listed[0].ID)

	all, err := s.service.ListPolicies(s.ctx, s.staff, models.PolicyFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	collecting, err := s.service.ListPolicies(s.ctx, s.staff, models.PolicyFilter{Statuses: []models.Status{models.StatusCollectingInfo}})
	s.Require().NoError(err)
	s.Empty(collecting)
}

func (s *ServiceSuite) TestBrokerCapabilities() {
	policy := s.collectingPolicy(models.GuarantorNone)

	_, err := s.service.StartInvestigation(s.ctx, s.broker, policy.ID)
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.ApprovePolicy(s.ctx, s.broker, policy.ID)
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.UploadContract(s.ctx, s.broker, policy.ID, pdf("contrato.pdf"), "")
	s.requireCode(err, dErrors.CodeForbidden)

	details, err := s.service.GetPolicyDetails(s.ctx, s.broker, policy.ID)
	s.Require().NoError(err)
	s.Len(details.Actors, 2)
	s.NotEmpty(details.Activities)
}

// =============================================================================
// Actor Tokens
// =============================================================================

func (s *ServiceSuite) TestActorToken_OwnRecordOnly() {
	policy := s.createPolicy(models.GuarantorNone)
	s.invite(policy.ID)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	landlord := s.actorOfType(policy.ID, models.ActorLandlord)
	p := s.actorPrincipal(tenant.ID)

	doc, err := s.service.UploadDocument(s.ctx, p, tenant.ID, models.DocIdentification, "", pdf("ine.pdf"))
	s.Require().NoError(err)
	s.Equal(models.PerformerActor, doc.UploadedByType)
	s.Equal(tenant.ID.String(), doc.UploadedByID)

	_, err = s.service.UploadDocument(s.ctx, p, landlord.ID, models.DocIdentification, "", pdf("ine.pdf"))
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.GetActor(s.ctx, p, landlord.ID)
	s.requireCode(err, dErrors.CodeForbidden)

	details, err := s.service.GetPolicyDetails(s.ctx, p, policy.ID)
	s.Require().NoError(err)
	s.Require().Len(details.Actors, 1)
	s.Equal(tenant.ID, details.Actors[0].Actor.ID)
	s.Empty(details.Activities)

	_, err = s.service.ListActivities(s.ctx, p, policy.ID)
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.ListPolicies(s.ctx, p, models.PolicyFilter{})
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.CreatePayment(s.ctx, p, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString("100"),
	})
	s.requireCode(err, dErrors.CodeForbidden)

	other := s.createPolicy(models.GuarantorNone)
	_, err = s.service.GetPolicy(s.ctx, p, other.ID)
	s.requireCode(err, dErrors.CodeForbidden)
}

func (s *ServiceSuite) TestActorToken_RevokedByReinvite() {
	policy := s.createPolicy(models.GuarantorNone)
	s.invite(policy.ID)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	stale := s.actorPrincipal(tenant.ID)
	staleToken := s.rawToken(tenant.ID)

	_, err := s.service.SendInvitations(s.ctx, s.broker, policy.ID, &models.SendInvitationsRequest{ActorIDs: []id.ActorID{tenant.ID}})
	s.Require().NoError(err)

	_, err = s.service.UpdateActor(s.ctx, stale, tenant.ID, &models.UpdateActorRequest{
		Contact: &models.Contact{Email: "tenant@example.com", Phone: "5555"},
	})
	s.requireCode(err, dErrors.CodeUnauthorized)
	_, err = s.service.ResolveActorToken(s.ctx, staleToken)
	s.requireCode(err, dErrors.CodeUnauthorized)

	fresh, err := s.service.ResolveActorToken(s.ctx, s.rawToken(tenant.ID))
	s.Require().NoError(err)
	s.Equal(tenant.ID, fresh.Actor.ID)
	s.NotEmpty(fresh.Progress.MissingDocuments)
}

func (s *ServiceSuite) TestActorToken_ReadyActorIsLocked() {
	policy := s.createPolicy(models.GuarantorNone)
	s.invite(policy.ID)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	p := s.actorPrincipal(tenant.ID)

	s.completeActor(p, tenant.ID)

	_, err := s.service.UpdateActor(s.ctx, p, tenant.ID, &models.UpdateActorRequest{
		Contact: &models.Contact{Email: "tenant@example.com", Phone: "5555"},
	})
	s.requireCode(err, dErrors.CodeForbidden)
	_, err = s.service.UploadDocument(s.ctx, p, tenant.ID, models.DocOther, "", pdf("extra.pdf"))
	s.requireCode(err, dErrors.CodeForbidden)

	details, err := s.service.GetActor(s.ctx, p, tenant.ID)
	s.Require().NoError(err, "ready actors can still read their record")
	s.True(details.Progress.Ready)

	_, err = s.service.UpdateActor(s.ctx, s.staff, tenant.ID, &models.UpdateActorRequest{
		Contact: &models.Contact{Email: "tenant@example.com", Phone: "5556"},
	})
	s.NoError(err, "staff may still correct a ready actor")
}

func (s *ServiceSuite) TestActorToken_SubmittedActorCannotDeleteDocuments() {
	policy := s.createPolicy(models.GuarantorNone)
	s.invite(policy.ID)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	p := s.actorPrincipal(tenant.ID)

	doc, err := s.service.UploadDocument(s.ctx, p, tenant.ID, models.DocIdentification, "", pdf("ine.pdf"))
	s.Require().NoError(err)
	_, err = s.service.UpdateActor(s.ctx, p, tenant.ID, &models.UpdateActorRequest{
		Identity: &models.Identity{FirstName: "Tomás", PaternalLastName: "Ruiz", Nationality: models.NationalityMexican},
		Contact:  &models.Contact{Email: "tenant@example.com", Phone: "5555"},
	})
	s.Require().NoError(err)
	_, err = s.service.SubmitActor(s.ctx, p, tenant.ID)
	s.Require().NoError(err)

	err = s.service.DeleteDocument(s.ctx, p, doc.ID)
	s.requireCode(err, dErrors.CodeForbidden)

	_, err = s.service.UploadDocument(s.ctx, p, tenant.ID, models.DocIncomeProof, "", pdf("nomina.pdf"))
	s.NoError(err, "a submitted actor may keep uploading until ready")
}

func (s *ServiceSuite) TestResolveActorToken_Invalid() {
	_, err := s.service.ResolveActorToken(s.ctx, "not-a-token")
	s.requireCode(err, dErrors.CodeUnauthorized)

	staffToken, err := s.tokens.GenerateStaffToken(s.staff.UserID, string(access.RoleStaff), time.Hour)
	s.Require().NoError(err)
	_, err = s.service.ResolveActorToken(s.ctx, staffToken.Token)
	s.requireCode(err, dErrors.CodeUnauthorized)
}
