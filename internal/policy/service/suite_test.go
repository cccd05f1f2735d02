package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"leasecover/internal/access"
	"leasecover/internal/filestore"
	"leasecover/internal/gateway"
	jwttoken "leasecover/internal/jwt_token"
	"leasecover/internal/notification"
	"leasecover/internal/policy/models"
	"leasecover/internal/policy/store"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// =============================================================================
// Policy Service Test Suite
// =============================================================================
// The service is exercised against the in-memory unit of work with in-process
// collaborators, so every lifecycle rule runs through the same code path the
// Postgres store uses.

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.Memory
	notifier *notification.Recorder
	gateway  *gateway.Fake
	files    *filestore.Memory
	tokens   *jwttoken.JWTService
	service  *Service

	staff  access.Principal
	broker access.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.notifier = notification.NewRecorder()
	s.gateway = gateway.NewFake("https://pay.test")
	s.files = filestore.NewMemory()
	s.tokens = jwttoken.NewJWTService("test-signing-key", "leasecover", "leasecover-actors")
	s.service = s.newService()

	s.staff = access.Principal{Role: access.RoleStaff, UserID: id.UserID(uuid.New())}
	s.broker = access.Principal{Role: access.RoleBroker, UserID: id.UserID(uuid.New())}
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithStorage(s.files),
		WithNotifier(s.notifier),
		WithGateway(s.gateway),
		WithTokens(s.tokens, jwttoken.NewJWTServiceAdapter(s.tokens)),
	}
	return New(s.store, s.store, append(base, opts...)...)
}

// =============================================================================
// Fixtures
// =============================================================================

var startDate = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func createRequest(guarantor models.GuarantorType) *models.CreatePolicyRequest {
	return &models.CreatePolicyRequest{
		GuarantorType: guarantor,
		Property: models.Property{
			Address: "Calle Durango 10, Roma Norte, CDMX",
			Type:    models.PropertyApartment,
		},
		RentAmount:           decimal.RequireFromString("18000"),
		DepositAmount:        decimal.RequireFromString("18000"),
		ContractLengthMonths: 12,
		StartDate:            startDate,
		Landlord:             models.ActorInvite{Email: "landlord@example.com", FirstName: "Laura", PaternalLastName: "Méndez"},
		Tenant:               models.ActorInvite{Email: "tenant@example.com", FirstName: "Tomás", PaternalLastName: "Ruiz"},
	}
}

func pdf(name string) *models.FileUpload {
	content := []byte("%PDF-1.7 " + name)
	return &models.FileUpload{FileName: name, ContentType: "application/pdf", Size: int64(len(content)), Content: content}
}

func (s *ServiceSuite) createPolicy(guarantor models.GuarantorType) *models.Policy {
	policy, err := s.service.CreatePolicy(s.ctx, s.broker, createRequest(guarantor))
	s.Require().NoError(err)
	return policy
}

func (s *ServiceSuite) actors(policyID id.PolicyID) []*models.Actor {
	actors, err := s.store.ListActors(s.ctx, policyID)
	s.Require().NoError(err)
	return actors
}

func (s *ServiceSuite) actorOfType(policyID id.PolicyID, t models.ActorType) *models.Actor {
	ofType := models.ActorsOfType(s.actors(policyID), t)
	s.Require().NotEmpty(ofType, "no %s on policy", t)
	return ofType[0]
}

func (s *ServiceSuite) policy(policyID id.PolicyID) *models.Policy {
	p, err := s.store.GetPolicy(s.ctx, policyID)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) activities(policyID id.PolicyID, action models.Action) []*models.Activity {
	all, err := s.store.ListActivities(s.ctx, policyID)
	s.Require().NoError(err)
	var out []*models.Activity
	for _, a := range all {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

func (s *ServiceSuite) invite(policyID id.PolicyID) *models.InvitationResult {
	res, err := s.service.SendInvitations(s.ctx, s.broker, policyID, nil)
	s.Require().NoError(err)
	return res
}

// actorPrincipal is the principal an actor's current invitation token grants.
func (s *ServiceSuite) actorPrincipal(actorID id.ActorID) access.Principal {
	actor, err := s.store.GetActor(s.ctx, actorID)
	s.Require().NoError(err)
	s.Require().NotEmpty(actor.TokenID, "actor has not been invited")
	return access.Principal{Role: access.RoleActor, ActorID: actor.ID, PolicyID: actor.PolicyID, TokenID: actor.TokenID}
}

// completeActor fills every required field, submits and uploads every
// required document, leaving the actor ready.
func (s *ServiceSuite) completeActor(p access.Principal, actorID id.ActorID) {
	actor, err := s.store.GetActor(s.ctx, actorID)
	s.Require().NoError(err)

	req := &models.UpdateActorRequest{
		Identity: &models.Identity{
			FirstName:        "Ana",
			PaternalLastName: "García",
			Nationality:      models.NationalityMexican,
		},
		Contact: &models.Contact{
			Email:   actor.Contact.Email,
			Phone:   "+52 55 1234 5678",
			Address: "Insurgentes Sur 1000, CDMX",
		},
	}
	if actor.Type.Traits().ChoosesGuarantee {
		method := models.GuaranteeIncome
		req.GuaranteeMethod = &method
	}
	_, err = s.service.UpdateActor(s.ctx, p, actorID, req)
	s.Require().NoError(err)
	_, err = s.service.SubmitActor(s.ctx, p, actorID)
	s.Require().NoError(err)

	details, err := s.service.GetActor(s.ctx, s.staff, actorID)
	s.Require().NoError(err)
	for _, category := range details.Progress.MissingDocuments {
		_, err := s.service.UploadDocument(s.ctx, p, actorID, category, "", pdf(string(category)+".pdf"))
		s.Require().NoError(err)
	}
	progress, err := s.service.ActorProgress(s.ctx, s.staff, actorID)
	s.Require().NoError(err)
	s.Require().True(progress.Ready)
}

func (s *ServiceSuite) addGuarantor(policyID id.PolicyID, t models.ActorType, email string) *models.Actor {
	req := &models.AddActorRequest{
		Type:   t,
		Invite: models.ActorInvite{Email: email, FirstName: "Gil", PaternalLastName: "Soto"},
	}
	if t == models.ActorJointObligor {
		req.GuaranteeMethod = models.GuaranteeIncome
	}
	actor, err := s.service.AddActor(s.ctx, s.broker, policyID, req)
	s.Require().NoError(err)
	return actor
}

// collectingPolicy returns an invited policy whose actors are all ready.
func (s *ServiceSuite) collectingPolicy(guarantor models.GuarantorType) *models.Policy {
	policy := s.createPolicy(guarantor)
	if guarantor.Requires(models.ActorJointObligor) {
		s.addGuarantor(policy.ID, models.ActorJointObligor, "obligor@example.com")
	}
	if guarantor.Requires(models.ActorAval) {
		s.addGuarantor(policy.ID, models.ActorAval, "aval@example.com")
	}
	s.invite(policy.ID)
	for _, a := range s.actors(policy.ID) {
		s.completeActor(s.staff, a.ID)
	}
	return s.policy(policy.ID)
}

// contractPendingPolicy walks a policy through an approved investigation.
func (s *ServiceSuite) contractPendingPolicy() *models.Policy {
	policy := s.collectingPolicy(models.GuarantorNone)
	_, err := s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	_, err = s.service.CompleteInvestigation(s.ctx, s.staff, policy.ID, &models.CompleteInvestigationRequest{
		Verdict:   models.VerdictApproved,
		RiskLevel: models.RiskLow,
	})
	s.Require().NoError(err)
	approved, err := s.service.ApprovePolicy(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusContractPending, approved.Status)
	return approved
}

func (s *ServiceSuite) createCardPayment(policyID id.PolicyID, subtotal string) *models.Payment {
	pay, err := s.service.CreatePayment(s.ctx, s.broker, policyID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString(subtotal),
		Method:    models.MethodCard,
	})
	s.Require().NoError(err)
	return pay
}

func (s *ServiceSuite) completeSession(sessionID, eventID string) *models.GatewayEventResult {
	res, err := s.service.RecordGatewayEvent(s.ctx, &models.GatewayEvent{
		ID:         eventID,
		Kind:       models.EventSessionCompleted,
		SessionID:  sessionID,
		OccurredAt: time.Now(),
	})
	s.Require().NoError(err)
	return res
}

// activePolicy walks the whole happy path.
func (s *ServiceSuite) activePolicy() *models.Policy {
	policy := s.contractPendingPolicy()
	_, err := s.service.UploadContract(s.ctx, s.staff, policy.ID, pdf("contrato.pdf"), "")
	s.Require().NoError(err)
	_, err = s.service.MarkContractSigned(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	pay := s.createCardPayment(policy.ID, "4500")
	s.completeSession(pay.GatewaySessionID, "evt_"+uuid.NewString())
	active, err := s.service.ActivatePolicy(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	return active
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "unexpected error: %v", err)
}
