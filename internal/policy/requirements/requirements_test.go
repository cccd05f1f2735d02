package requirements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestRequired(t *testing.T) {
	mexican := Conditions{Nationality: models.NationalityMexican}
	foreign := Conditions{Nationality: models.NationalityForeign}

	tests := []struct {
		name     string
		actor    models.ActorType
		kind     models.EntityKind
		cond     Conditions
		expected []models.DocumentCategory
	}{
		{
			name:  "individual landlord",
			actor: models.ActorLandlord, kind: models.EntityIndividual, cond: mexican,
			expected: []models.DocumentCategory{
				models.DocIdentification, models.DocPropertyDeed, models.DocBankStatement, models.DocAddressProof,
			},
		},
		{
			name:  "foreign landlord adds immigration document",
			actor: models.ActorLandlord, kind: models.EntityIndividual, cond: foreign,
			expected: []models.DocumentCategory{
				models.DocIdentification, models.DocPropertyDeed, models.DocBankStatement, models.DocAddressProof,
				models.DocImmigrationDocument,
			},
		},
		{
			name:  "company tenant",
			actor: models.ActorTenant, kind: models.EntityCompany, cond: mexican,
			expected: []models.DocumentCategory{
				models.DocCompanyConstitution, models.DocLegalPowers, models.DocLegalRepIdentification,
				models.DocTaxStatusCertificate, models.DocBankStatement, models.DocAddressProof,
			},
		},
		{
			name:  "joint obligor backing with income",
			actor: models.ActorJointObligor, kind: models.EntityIndividual,
			cond: Conditions{Nationality: models.NationalityMexican, GuaranteeMethod: models.GuaranteeIncome},
			expected: []models.DocumentCategory{
				models.DocIdentification, models.DocAddressProof, models.DocIncomeProof,
			},
		},
		{
			name:  "joint obligor backing with property",
			actor: models.ActorJointObligor, kind: models.EntityIndividual,
			cond: Conditions{Nationality: models.NationalityMexican, GuaranteeMethod: models.GuaranteeProperty},
			expected: []models.DocumentCategory{
				models.DocIdentification, models.DocAddressProof, models.DocPropertyDeed, models.DocPropertyTaxStatement,
			},
		},
		{
			name:  "company joint obligor backing with income",
			actor: models.ActorJointObligor, kind: models.EntityCompany,
			cond: Conditions{GuaranteeMethod: models.GuaranteeIncome},
			expected: []models.DocumentCategory{
				models.DocCompanyConstitution, models.DocLegalPowers, models.DocLegalRepIdentification,
				models.DocTaxStatusCertificate, models.DocAddressProof, models.DocBankStatement,
			},
		},
		{
			name:  "individual aval always pledges property",
			actor: models.ActorAval, kind: models.EntityIndividual, cond: mexican,
			expected: []models.DocumentCategory{
				models.DocIdentification, models.DocAddressProof, models.DocPropertyDeed, models.DocPropertyTaxStatement,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Required(tt.actor, tt.kind, tt.cond))
		})
	}
}

func TestRequired_Deterministic(t *testing.T) {
	cond := Conditions{Nationality: models.NationalityForeign, GuaranteeMethod: models.GuaranteeProperty}
	for _, at := range models.AllActorTypes {
		for _, kind := range []models.EntityKind{models.EntityIndividual, models.EntityCompany} {
			first := Required(at, kind, cond)
			assert.NotEmpty(t, first, "%s/%s has no requirements", at, kind)
			for range 5 {
				assert.Equal(t, first, Required(at, kind, cond))
			}
		}
	}
}

func TestTable_ReturnsCopy(t *testing.T) {
	rows := Table(models.ActorTenant, models.EntityIndividual)
	rows[0].Category = models.DocOther
	assert.Equal(t, models.DocIdentification, Table(models.ActorTenant, models.EntityIndividual)[0].Category)
}

func TestForActor_AvalIgnoresChosenMethod(t *testing.T) {
	aval, err := models.NewActor(id.NewActorID(), id.NewPolicyID(), models.ActorAval, models.EntityIndividual, testNow)
	assert.NoError(t, err)
	aval.GuaranteeMethod = models.GuaranteeIncome

	assert.Contains(t, ForActor(aval), models.DocPropertyDeed)
	assert.NotContains(t, ForActor(aval), models.DocIncomeProof)
}

func TestMissing(t *testing.T) {
	required := []models.DocumentCategory{models.DocIdentification, models.DocIncomeProof, models.DocAddressProof}
	docs := []*models.Document{
		{Category: models.DocIncomeProof},
		{Category: models.DocOther},
	}
	assert.Equal(t, []models.DocumentCategory{models.DocIdentification, models.DocAddressProof}, Missing(required, docs))
	assert.Empty(t, Missing(nil, docs))
}
