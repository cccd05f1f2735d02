package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func landlord(t *testing.T, primary bool, pct int64) *Actor {
	t.Helper()
	a, err := NewActor(id.NewActorID(), id.NewPolicyID(), ActorLandlord, EntityIndividual, testNow)
	require.NoError(t, err)
	a.IsPrimary = primary
	a.OwnershipPercentage = decimal.NewFromInt(pct)
	return a
}

func TestNewActor(t *testing.T) {
	t.Run("aval guarantee is fixed to property", func(t *testing.T) {
		a, err := NewActor(id.NewActorID(), id.NewPolicyID(), ActorAval, EntityCompany, testNow)
		require.NoError(t, err)
		assert.Equal(t, GuaranteeProperty, a.GuaranteeMethod)
		assert.Equal(t, VerificationPending, a.VerificationStatus)
	})

	t.Run("unknown type is an invariant violation", func(t *testing.T) {
		_, err := NewActor(id.NewActorID(), id.NewPolicyID(), ActorType("broker"), EntityIndividual, testNow)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestCheckActorInvariants(t *testing.T) {
	t.Run("single primary passes", func(t *testing.T) {
		assert.NoError(t, CheckActorInvariants([]*Actor{landlord(t, true, 60), landlord(t, false, 40)}))
	})

	t.Run("two primaries violate the invariant", func(t *testing.T) {
		err := CheckActorInvariants([]*Actor{landlord(t, true, 50), landlord(t, true, 50)})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("archived primaries are ignored", func(t *testing.T) {
		old := landlord(t, true, 50)
		old.ArchivedAt = &testNow
		assert.NoError(t, CheckActorInvariants([]*Actor{old, landlord(t, true, 50)}))
	})

	t.Run("ownership above 100 is a validation error", func(t *testing.T) {
		err := CheckActorInvariants([]*Actor{landlord(t, true, 70), landlord(t, false, 31)})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestActor_MissingFields(t *testing.T) {
	a, err := NewActor(id.NewActorID(), id.NewPolicyID(), ActorJointObligor, EntityIndividual, testNow)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"first_name", "paternal_last_name", "nationality", "email", "phone", "guarantee_method",
	}, a.MissingFields())

	a.Identity = Identity{FirstName: "Ana", PaternalLastName: "López", Nationality: NationalityForeign}
	a.Contact = Contact{Email: "ana@example.com", Phone: "5550001111"}
	a.GuaranteeMethod = GuaranteeIncome
	assert.Equal(t, []string{"passport_number"}, a.MissingFields())

	a.Identity.PassportNumber = "G123"
	assert.Empty(t, a.MissingFields())
}

func TestActor_ApplyVerificationRejectReopens(t *testing.T) {
	a := landlord(t, true, 100)
	a.ApplySubmission(testNow)
	require.True(t, a.InformationComplete)

	a.ApplyVerification(VerificationRejected, "blurry ID", id.UserID(id.NewPolicyID()), testNow.Add(time.Hour))
	assert.False(t, a.InformationComplete)
	assert.Nil(t, a.CompletedAt)
	assert.Equal(t, "blurry ID", a.RejectionReason)
}

func TestActor_DisplayName(t *testing.T) {
	a := landlord(t, true, 100)
	a.Identity.FirstName = "Ana"
	a.Identity.PaternalLastName = "López"
	assert.Equal(t, "landlord Ana López", a.DisplayName())

	c, err := NewActor(id.NewActorID(), id.NewPolicyID(), ActorJointObligor, EntityCompany, testNow)
	require.NoError(t, err)
	c.Identity.CompanyName = "Grupo Ejemplo SA"
	assert.Equal(t, "joint obligor Grupo Ejemplo SA", c.DisplayName())
}
