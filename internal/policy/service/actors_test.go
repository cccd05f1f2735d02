package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"leasecover/internal/filestore"
	"leasecover/internal/policy/models"
	dErrors "leasecover/pkg/domain-errors"
)

// failingStorage rejects every write.
type failingStorage struct{ err error }

func (f failingStorage) Put(context.Context, string, []byte, string) (filestore.Object, error) {
	return filestore.Object{}, f.err
}

func (f failingStorage) Delete(context.Context, string) error { return nil }

// =============================================================================
// Actor Management
// =============================================================================

func (s *ServiceSuite) TestSubmitActor_RequiresFields() {
	policy := s.createPolicy(models.GuarantorNone)
	landlord := s.actorOfType(policy.ID, models.ActorLandlord)

	_, err := s.service.SubmitActor(s.ctx, s.staff, landlord.ID)
	s.requireCode(err, dErrors.CodeValidation)
	msg := dErrors.MessageOf(err)
	s.Contains(msg, "nationality")
	s.Contains(msg, "phone")
	s.Contains(msg, "address")
	s.NotContains(msg, "first_name", "names came with the invitation")
}

func (s *ServiceSuite) TestSubmitActor_ForeignNationality() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)

	_, err := s.service.UpdateActor(s.ctx, s.staff, tenant.ID, &models.UpdateActorRequest{
		Identity: &models.Identity{FirstName: "Jean", PaternalLastName: "Dupont", Nationality: models.NationalityForeign},
		Contact:  &models.Contact{Email: "tenant@example.com", Phone: "+33 1 23 45 67 89"},
	})
	s.Require().NoError(err)

	_, err = s.service.SubmitActor(s.ctx, s.staff, tenant.ID)
	s.requireCode(err, dErrors.CodeValidation)
	s.Contains(dErrors.MessageOf(err), "passport_number")

	progress, err := s.service.ActorProgress(s.ctx, s.staff, tenant.ID)
	s.Require().NoError(err)
	s.Contains(progress.MissingDocuments, models.DocImmigrationDocument)
}

func (s *ServiceSuite) TestUpdateActor_ReopensCompletedActor() {
	policy := s.collectingPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	s.True(tenant.InformationComplete)

	got, err := s.service.UpdateActor(s.ctx, s.staff, tenant.ID, &models.UpdateActorRequest{
		Contact: &models.Contact{Email: "tenant@example.com"},
	})
	s.Require().NoError(err)
	s.False(got.InformationComplete)

	updates := s.activities(policy.ID, models.ActionActorUpdated)
	s.Require().NotEmpty(updates)
	s.Equal(true, updates[len(updates)-1].Details["reopened"])

	_, err = s.service.StartInvestigation(s.ctx, s.staff, policy.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
}

func (s *ServiceSuite) TestUpdateActor_TypeSpecificFields() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	landlord := s.actorOfType(policy.ID, models.ActorLandlord)

	method := models.GuaranteeIncome
	_, err := s.service.UpdateActor(s.ctx, s.staff, tenant.ID, &models.UpdateActorRequest{GuaranteeMethod: &method})
	s.requireCode(err, dErrors.CodeValidation)

	share := decimal.NewFromInt(60)
	_, err = s.service.UpdateActor(s.ctx, s.staff, tenant.ID, &models.UpdateActorRequest{OwnershipPercentage: &share})
	s.requireCode(err, dErrors.CodeValidation)

	got, err := s.service.UpdateActor(s.ctx, s.staff, landlord.ID, &models.UpdateActorRequest{OwnershipPercentage: &share})
	s.Require().NoError(err)
	s.True(got.OwnershipPercentage.Equal(share))

	_, err = s.service.UpdateActor(s.ctx, s.staff, landlord.ID, &models.UpdateActorRequest{})
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestAddActor_Rules() {
	policy := s.createPolicy(models.GuarantorAval)

	s.Run("guarantor type must allow the actor", func() {
		_, err := s.service.AddActor(s.ctx, s.broker, policy.ID, &models.AddActorRequest{
			Type:   models.ActorJointObligor,
			Invite: models.ActorInvite{Email: "obligor@example.com"},
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("aval guarantee is always property", func() {
		_, err := s.service.AddActor(s.ctx, s.broker, policy.ID, &models.AddActorRequest{
			Type:            models.ActorAval,
			Invite:          models.ActorInvite{Email: "aval@example.com"},
			GuaranteeMethod: models.GuaranteeIncome,
		})
		s.requireCode(err, dErrors.CodeValidation)

		aval := s.addGuarantor(policy.ID, models.ActorAval, "aval@example.com")
		s.Equal(models.GuaranteeProperty, aval.GuaranteeMethod)
	})

	s.Run("one tenant per policy", func() {
		_, err := s.service.AddActor(s.ctx, s.broker, policy.ID, &models.AddActorRequest{
			Type:   models.ActorTenant,
			Invite: models.ActorInvite{Email: "second@example.com"},
		})
		s.requireCode(err, dErrors.CodeStateConflict)
	})

	s.Run("co-owner landlords are not primary", func() {
		coOwner, err := s.service.AddActor(s.ctx, s.broker, policy.ID, &models.AddActorRequest{
			Type:   models.ActorLandlord,
			Invite: models.ActorInvite{Email: "coowner@example.com"},
		})
		s.Require().NoError(err)
		s.False(coOwner.IsPrimary)
		s.Len(s.activities(policy.ID, models.ActionActorAdded), 2)
	})
}

func (s *ServiceSuite) TestSetPrimaryLandlord() {
	policy := s.createPolicy(models.GuarantorNone)
	original := s.actorOfType(policy.ID, models.ActorLandlord)
	coOwner := s.addGuarantor(policy.ID, models.ActorLandlord, "coowner@example.com")

	got, err := s.service.SetPrimaryLandlord(s.ctx, s.staff, coOwner.ID)
	s.Require().NoError(err)
	s.True(got.IsPrimary)

	primary := models.PrimaryLandlord(s.actors(policy.ID))
	s.Require().NotNil(primary)
	s.Equal(coOwner.ID, primary.ID)
	reloaded, err := s.store.GetActor(s.ctx, original.ID)
	s.Require().NoError(err)
	s.False(reloaded.IsPrimary)

	entries := s.activities(policy.ID, models.ActionPrimaryLandlordChanged)
	s.Require().Len(entries, 1)
	s.Equal(original.ID.String(), entries[0].Details["previous_actor_id"])

	_, err = s.service.SetPrimaryLandlord(s.ctx, s.staff, s.actorOfType(policy.ID, models.ActorTenant).ID)
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.SetPrimaryLandlord(s.ctx, s.broker, original.ID)
	s.requireCode(err, dErrors.CodeForbidden)
}

func (s *ServiceSuite) TestReplaceActor() {
	policy := s.createPolicy(models.GuarantorNone)
	s.invite(policy.ID)
	old := s.actorOfType(policy.ID, models.ActorTenant)
	oldPrincipal := s.actorPrincipal(old.ID)

	successor, err := s.service.ReplaceActor(s.ctx, s.broker, old.ID, &models.ReplaceActorRequest{
		Invite: models.ActorInvite{Email: "new-tenant@example.com", FirstName: "Nora"},
		Reason: "tenant withdrew",
	})
	s.Require().NoError(err)
	s.NotEqual(old.ID, successor.ID)

	tenants := models.ActorsOfType(s.actors(policy.ID), models.ActorTenant)
	s.Require().Len(tenants, 1)
	s.Equal(successor.ID, tenants[0].ID)

	archived, err := s.store.GetActor(s.ctx, old.ID)
	s.Require().NoError(err)
	s.True(archived.IsArchived())
	s.Equal(&successor.ID, archived.ReplacedBy)

	_, err = s.service.GetPolicy(s.ctx, oldPrincipal, policy.ID)
	s.requireCode(err, dErrors.CodeUnauthorized)

	_, err = s.service.ReplaceActor(s.ctx, s.broker, old.ID, &models.ReplaceActorRequest{
		Invite: models.ActorInvite{Email: "third@example.com"},
		Reason: "again",
	})
	s.requireCode(err, dErrors.CodeStateConflict)

	_, err = s.service.ReplaceActor(s.ctx, s.broker, s.actorOfType(policy.ID, models.ActorLandlord).ID, &models.ReplaceActorRequest{
		Invite: models.ActorInvite{Email: "landlord2@example.com"},
		Reason: "sold",
	})
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestVerifyActor() {
	policy := s.collectingPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)

	_, err := s.service.VerifyActor(s.ctx, s.staff, tenant.ID, &models.VerifyActorRequest{Status: models.VerificationRejected})
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.VerifyActor(s.ctx, s.broker, tenant.ID, &models.VerifyActorRequest{Status: models.VerificationApproved})
	s.requireCode(err, dErrors.CodeForbidden)

	got, err := s.service.VerifyActor(s.ctx, s.staff, tenant.ID, &models.VerifyActorRequest{
		Status: models.VerificationRejected,
		Reason: "identification is illegible",
	})
	s.Require().NoError(err)
	s.False(got.InformationComplete, "rejection re-opens the actor")
	s.Equal(&s.staff.UserID, got.VerifiedBy)

	got, err = s.service.VerifyActor(s.ctx, s.staff, tenant.ID, &models.VerifyActorRequest{Status: models.VerificationApproved})
	s.Require().NoError(err)
	s.Equal(models.VerificationApproved, got.VerificationStatus)
	s.Empty(got.RejectionReason)
}

func (s *ServiceSuite) TestReferencesAndProgress() {
	policy := s.collectingPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	landlord := s.actorOfType(policy.ID, models.ActorLandlord)

	progress, err := s.service.ActorProgress(s.ctx, s.staff, landlord.ID)
	s.Require().NoError(err)
	s.Equal(100, progress.Percentage)

	progress, err = s.service.ActorProgress(s.ctx, s.staff, tenant.ID)
	s.Require().NoError(err)
	s.Equal(80, progress.Percentage)
	s.True(progress.Ready)
	s.Equal(3, progress.ReferencesRequired)

	_, err = s.service.AddReference(s.ctx, s.staff, tenant.ID, &models.AddReferenceRequest{
		Kind: models.ReferenceCommercial, Name: "Acme", Phone: "5555", CompanyName: "Acme SA",
	})
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.AddReference(s.ctx, s.staff, landlord.ID, &models.AddReferenceRequest{
		Kind: models.ReferencePersonal, Name: "Rosa", Phone: "5555",
	})
	s.requireCode(err, dErrors.CodeValidation)

	for _, name := range []string{"Rosa", "Pedro", "Lucía"} {
		_, err := s.service.AddReference(s.ctx, s.staff, tenant.ID, &models.AddReferenceRequest{
			Kind: models.ReferencePersonal, Name: name, Phone: "+52 55 0000 0000", Relationship: "friend",
		})
		s.Require().NoError(err)
	}
	progress, err = s.service.ActorProgress(s.ctx, s.staff, tenant.ID)
	s.Require().NoError(err)
	s.Equal(100, progress.Percentage)
	s.Equal(3, progress.ReferencesProvided)
	s.Len(s.activities(policy.ID, models.ActionReferenceAdded), 3)
}

// =============================================================================
// Documents
// =============================================================================

func (s *ServiceSuite) TestUploadDocument_Validation() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)

	text := pdf("notes.txt")
	text.ContentType = "text/plain"
	_, err := s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIdentification, "", text)
	s.requireCode(err, dErrors.CodeValidation)

	huge := pdf("huge.pdf")
	huge.Content = make([]byte, models.MaxUploadBytes+1)
	_, err = s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIdentification, "", huge)
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.UploadDocument(s.ctx, s.staff, tenant.ID, "SELFIE", "", pdf("selfie.pdf"))
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIdentification, "", nil)
	s.requireCode(err, dErrors.CodeValidation)

	s.Zero(s.files.Len())
}

func (s *ServiceSuite) TestUploadDocument_StorageFailureLeavesNoRecord() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	s.service = s.newService(WithStorage(failingStorage{err: errors.New("bucket unavailable")}))

	_, err := s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIdentification, "INE", pdf("ine.pdf"))
	s.requireCode(err, dErrors.CodeExternalService)

	docs, err := s.service.ListDocuments(s.ctx, s.staff, tenant.ID)
	s.Require().NoError(err)
	s.Empty(docs)
	s.Empty(s.activities(policy.ID, models.ActionDocumentUploaded))
}

func (s *ServiceSuite) TestUploadAndDeleteDocument() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)

	doc, err := s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIdentification, "INE", pdf("ine.pdf"))
	s.Require().NoError(err)
	s.Equal(models.PerformerStaff, doc.UploadedByType)
	s.Equal(filestore.Checksum(pdf("ine.pdf").Content), doc.Checksum)
	stored, ok := s.files.Get(doc.Location)
	s.Require().True(ok)
	s.Equal(pdf("ine.pdf").Content, stored)

	s.Require().NoError(s.service.DeleteDocument(s.ctx, s.staff, doc.ID))
	_, ok = s.files.Get(doc.Location)
	s.False(ok, "the stored object is removed after commit")

	docs, err := s.service.ListDocuments(s.ctx, s.staff, tenant.ID)
	s.Require().NoError(err)
	s.Empty(docs)
	s.Len(s.activities(policy.ID, models.ActionDocumentDeleted), 1)

	err = s.service.DeleteDocument(s.ctx, s.staff, doc.ID)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestDocuments_FrozenAfterCancellation() {
	policy := s.createPolicy(models.GuarantorNone)
	tenant := s.actorOfType(policy.ID, models.ActorTenant)
	doc, err := s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIdentification, "", pdf("ine.pdf"))
	s.Require().NoError(err)
	_, err = s.service.CancelPolicy(s.ctx, s.staff, policy.ID, models.CancelClientRequest, "client withdrew")
	s.Require().NoError(err)

	_, err = s.service.UploadDocument(s.ctx, s.staff, tenant.ID, models.DocIncomeProof, "", pdf("nomina.pdf"))
	s.requireCode(err, dErrors.CodeStateConflict)
	err = s.service.DeleteDocument(s.ctx, s.staff, doc.ID)
	s.requireCode(err, dErrors.CodeStateConflict)
	s.Equal(1, s.files.Len())
}
