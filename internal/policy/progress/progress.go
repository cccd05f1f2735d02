// Package progress aggregates an actor's information, documents and
// references into a completion percentage and the ready signal that gates
// investigation.
package progress

import (
	"leasecover/internal/policy/models"
	"leasecover/internal/policy/requirements"
)

const (
	infoWeight      = 50
	documentsWeight = 30
	referenceWeight = 20
)

// Compute is deterministic and side-effect free. Actors without a reference
// requirement get the reference weight added to documents.
func Compute(actor *models.Actor, docs []*models.Document, refs []*models.Reference) models.ActorProgress {
	required := requirements.ForActor(actor)
	missing := requirements.Missing(required, docs)
	refsRequired := actor.Type.Traits().References

	percentage := 0
	if actor.InformationComplete {
		percentage += infoWeight
	}

	docWeight := documentsWeight
	if refsRequired == 0 {
		docWeight += referenceWeight
	}
	percentage += share(docWeight, len(required)-len(missing), len(required))

	provided := countReferences(refs, actor)
	if refsRequired > 0 {
		percentage += share(referenceWeight, min(provided, refsRequired), refsRequired)
	}

	return models.ActorProgress{
		Percentage:         percentage,
		Ready:              actor.InformationComplete && len(missing) == 0,
		MissingDocuments:   missing,
		ReferencesProvided: provided,
		ReferencesRequired: refsRequired,
	}
}

// share is weight*done/total rounded down; an empty requirement set counts as
// complete.
func share(weight, done, total int) int {
	if total == 0 {
		return weight
	}
	return weight * done / total
}

func countReferences(refs []*models.Reference, actor *models.Actor) int {
	n := 0
	for _, r := range refs {
		if r.ActorID == actor.ID {
			n++
		}
	}
	return n
}
