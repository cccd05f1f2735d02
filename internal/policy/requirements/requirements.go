// Package requirements resolves which document categories an actor must
// upload. It is pure and deterministic so the same table drives both the
// upload checklist shown to actors and the investigation gate.
package requirements

import (
	"leasecover/internal/policy/models"
)

// Condition restricts when a requirement applies.
type Condition int

const (
	Always Condition = iota
	ForeignOnly
	PropertyGuarantee
	IncomeGuarantee
)

// Requirement is one row of the table.
type Requirement struct {
	Category models.DocumentCategory
	When     Condition
}

// Conditions are the actor facts the conditional rows look at.
type Conditions struct {
	Nationality     models.Nationality
	GuaranteeMethod models.GuaranteeMethod
}

func (c Conditions) holds(when Condition) bool {
	switch when {
	case Always:
		return true
	case ForeignOnly:
		return c.Nationality == models.NationalityForeign
	case PropertyGuarantee:
		return c.GuaranteeMethod == models.GuaranteeProperty
	case IncomeGuarantee:
		return c.GuaranteeMethod == models.GuaranteeIncome
	}
	return false
}

type key struct {
	actor models.ActorType
	kind  models.EntityKind
}

var companyDocs = []Requirement{
	{models.DocCompanyConstitution, Always},
	{models.DocLegalPowers, Always},
	{models.DocLegalRepIdentification, Always},
	{models.DocTaxStatusCertificate, Always},
}

var table = map[key][]Requirement{
	{models.ActorLandlord, models.EntityIndividual}: {
		{models.DocIdentification, Always},
		{models.DocPropertyDeed, Always},
		{models.DocBankStatement, Always},
		{models.DocAddressProof, Always},
		{models.DocImmigrationDocument, ForeignOnly},
	},
	{models.ActorLandlord, models.EntityCompany}: join(companyDocs, []Requirement{
		{models.DocPropertyDeed, Always},
		{models.DocBankStatement, Always},
	}),
	{models.ActorTenant, models.EntityIndividual}: {
		{models.DocIdentification, Always},
		{models.DocIncomeProof, Always},
		{models.DocAddressProof, Always},
		{models.DocEmploymentLetter, Always},
		{models.DocImmigrationDocument, ForeignOnly},
	},
	{models.ActorTenant, models.EntityCompany}: join(companyDocs, []Requirement{
		{models.DocBankStatement, Always},
		{models.DocAddressProof, Always},
	}),
	{models.ActorJointObligor, models.EntityIndividual}: {
		{models.DocIdentification, Always},
		{models.DocAddressProof, Always},
		{models.DocImmigrationDocument, ForeignOnly},
		{models.DocIncomeProof, IncomeGuarantee},
		{models.DocPropertyDeed, PropertyGuarantee},
		{models.DocPropertyTaxStatement, PropertyGuarantee},
	},
	{models.ActorJointObligor, models.EntityCompany}: join(companyDocs, []Requirement{
		{models.DocAddressProof, Always},
		{models.DocBankStatement, IncomeGuarantee},
		{models.DocPropertyDeed, PropertyGuarantee},
		{models.DocPropertyTaxStatement, PropertyGuarantee},
	}),
	{models.ActorAval, models.EntityIndividual}: {
		{models.DocIdentification, Always},
		{models.DocAddressProof, Always},
		{models.DocPropertyDeed, Always},
		{models.DocPropertyTaxStatement, Always},
		{models.DocImmigrationDocument, ForeignOnly},
	},
	{models.ActorAval, models.EntityCompany}: join(companyDocs, []Requirement{
		{models.DocAddressProof, Always},
		{models.DocPropertyDeed, Always},
		{models.DocPropertyTaxStatement, Always},
	}),
}

func join(a, b []Requirement) []Requirement {
	out := make([]Requirement, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Table returns the raw rows for (actorType, kind), for checklist rendering.
func Table(actorType models.ActorType, kind models.EntityKind) []Requirement {
	rows := table[key{actorType, kind}]
	out := make([]Requirement, len(rows))
	copy(out, rows)
	return out
}

// Required returns the categories the actor must upload, in table order.
func Required(actorType models.ActorType, kind models.EntityKind, c Conditions) []models.DocumentCategory {
	rows := table[key{actorType, kind}]
	out := make([]models.DocumentCategory, 0, len(rows))
	for _, r := range rows {
		if c.holds(r.When) {
			out = append(out, r.Category)
		}
	}
	return out
}

// ConditionsFor reads the conditional facts off an actor.
func ConditionsFor(a *models.Actor) Conditions {
	method := a.GuaranteeMethod
	if fixed := a.Type.Traits().FixedGuaranteeMethod; fixed != "" {
		method = fixed
	}
	return Conditions{
		Nationality:     a.Identity.Nationality,
		GuaranteeMethod: method,
	}
}

// ForActor is Required applied to an actor record.
func ForActor(a *models.Actor) []models.DocumentCategory {
	return Required(a.Type, a.Kind, ConditionsFor(a))
}

// Missing returns the required categories with no uploaded document.
func Missing(required []models.DocumentCategory, docs []*models.Document) []models.DocumentCategory {
	present := make(map[models.DocumentCategory]struct{}, len(docs))
	for _, d := range docs {
		present[d.Category] = struct{}{}
	}
	var missing []models.DocumentCategory
	for _, c := range required {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
