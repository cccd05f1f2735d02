package service

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"leasecover/internal/access"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
)

// UploadDocument stores the binary first and records the document only once
// storage succeeded. A storage failure leaves no trace in the database; a
// failed unit of work removes the stored object again.
func (s *Service) UploadDocument(ctx context.Context, p access.Principal, actorID id.ActorID, category models.DocumentCategory, documentType string, file *models.FileUpload) (out *models.Document, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.UploadDocument", attribute.String("actor_id", actorID.String()))
	defer func() { s.finish(span, "UploadDocument", start, err) }()

	if err := p.Require(access.CapEditActor); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown document category %q", category)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}

	// Cheap precheck so unauthorized callers never reach storage. The
	// authoritative check repeats under the policy lock.
	policy, actor, err := s.loadActorForWrite(ctx, p, actorID)
	if err != nil {
		return nil, err
	}

	hint := path.Join(storagePrefixPolicies, policy.ID.String(), "actors", actor.ID.String(), strings.ToLower(string(category)))
	obj, err := s.storage.Put(ctx, hint, file.Content, file.ContentType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to store document")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, actor, err := s.lockActor(txCtx, p, actorID)
		if err != nil {
			return err
		}
		if err := s.checkActorWritable(txCtx, p, policy, actor); err != nil {
			return err
		}
		perf := performerFor(txCtx, p)
		doc := &models.Document{
			ID:             id.NewDocumentID(),
			ActorID:        actor.ID,
			PolicyID:       policy.ID,
			Category:       category,
			DocumentType:   strings.TrimSpace(documentType),
			FileName:       strings.TrimSpace(file.FileName),
			ContentType:    file.ContentType,
			Size:           obj.Size,
			Location:       obj.Location,
			Checksum:       obj.Checksum,
			UploadedByType: perf.Type,
			UploadedByID:   perf.ID,
			UploadedAt:     now(txCtx),
		}
		if err := s.store.CreateDocument(txCtx, doc); err != nil {
			return storeErr(err, "failed to record document")
		}
		out = doc
		return s.appendActivity(txCtx, policy.ID, models.ActionDocumentUploaded, actor.DisplayName()+" uploaded "+string(category),
			map[string]any{
				"actor_id":    actor.ID.String(),
				"document_id": doc.ID.String(),
				"category":    string(category),
				"file_name":   doc.FileName,
			}, perf)
	})
	if err != nil {
		s.discardObject(ctx, obj.Location)
		return nil, err
	}

	s.logAudit(ctx, string(models.ActionDocumentUploaded),
		"policy_id", out.PolicyID.String(),
		"actor_id", out.ActorID.String(),
		"document_id", out.ID.String(),
		"user_id", auditUser(p),
	)
	return out, nil
}

// DeleteDocument removes the record in the unit of work and the stored object
// after commit. Actor tokens may only delete while their information is not
// yet complete.
func (s *Service) DeleteDocument(ctx context.Context, p access.Principal, documentID id.DocumentID) (err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.DeleteDocument", attribute.String("document_id", documentID.String()))
	defer func() { s.finish(span, "DeleteDocument", start, err) }()

	if err := p.Require(access.CapEditActor); err != nil {
		return err
	}

	var doc *models.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.store.GetDocument(txCtx, documentID)
		if err != nil {
			return notFoundOr(err, "document")
		}
		policy, actor, err := s.lockActor(txCtx, p, found.ActorID)
		if err != nil {
			return err
		}
		if p.IsActor() {
			if err := p.OwnsActor(actor.ID, actor.TokenID, actor.InformationComplete); err != nil {
				return err
			}
		}
		if err := requireMutable(policy); err != nil {
			return err
		}
		if err := s.store.DeleteDocument(txCtx, found.ID); err != nil {
			return notFoundOr(err, "document")
		}
		doc = found
		return s.appendActivity(txCtx, policy.ID, models.ActionDocumentDeleted, actor.DisplayName()+" removed "+string(found.Category),
			map[string]any{
				"actor_id":    actor.ID.String(),
				"document_id": found.ID.String(),
				"category":    string(found.Category),
			}, performerFor(txCtx, p))
	})
	if err != nil {
		return err
	}

	s.discardObject(ctx, doc.Location)
	s.logAudit(ctx, string(models.ActionDocumentDeleted),
		"policy_id", doc.PolicyID.String(),
		"actor_id", doc.ActorID.String(),
		"document_id", doc.ID.String(),
		"user_id", auditUser(p),
	)
	return nil
}

func (s *Service) ListDocuments(ctx context.Context, p access.Principal, actorID id.ActorID) ([]*models.Document, error) {
	actor, err := s.loadActorForRead(ctx, p, actorID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocumentsByActor(ctx, actor.ID)
	if err != nil {
		return nil, storeErr(err, "failed to load documents")
	}
	return docs, nil
}

// loadActorForWrite runs the write checks without a lock.
func (s *Service) loadActorForWrite(ctx context.Context, p access.Principal, actorID id.ActorID) (*models.Policy, *models.Actor, error) {
	actor, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return nil, nil, notFoundOr(err, "actor")
	}
	policy, err := s.loadPolicy(ctx, p, actor.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkActorWritable(ctx, p, policy, actor); err != nil {
		return nil, nil, err
	}
	return policy, actor, nil
}

// discardObject deletes a stored object on a best-effort basis.
func (s *Service) discardObject(ctx context.Context, location string) {
	if location == "" {
		return
	}
	if err := s.storage.Delete(ctx, location); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to delete stored object",
			"location", location,
			"error", err,
		)
	}
}
