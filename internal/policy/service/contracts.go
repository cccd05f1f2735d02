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

// UploadContract stores a new contract version and makes it current. The
// version number and the current flag are decided under the policy lock, so
// concurrent uploads get distinct versions. The first upload moves the policy
// from CONTRACT_PENDING to CONTRACT_UPLOADED; re-uploads keep that status.
func (s *Service) UploadContract(ctx context.Context, p access.Principal, policyID id.PolicyID, file *models.FileUpload, notes string) (out *models.Contract, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.UploadContract", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "UploadContract", start, err) }()

	if err := p.Require(access.CapUploadContract); err != nil {
		return nil, err
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	policy, err := s.loadPolicy(ctx, p, policyID)
	if err != nil {
		return nil, err
	}
	if err := checkContractUploadable(policy); err != nil {
		return nil, err
	}

	hint := path.Join(storagePrefixPolicies, policy.ID.String(), contractStorageSegment)
	obj, err := s.storage.Put(ctx, hint, file.Content, file.ContentType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to store contract")
	}

	var from models.Status
	var updated *models.Policy
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if err := checkContractUploadable(locked); err != nil {
			return err
		}
		existing, err := s.store.ListContracts(txCtx, locked.ID)
		if err != nil {
			return storeErr(err, "failed to load contracts")
		}
		contract := &models.Contract{
			ID:          id.NewContractID(),
			PolicyID:    locked.ID,
			Version:     models.NextContractVersion(existing),
			IsCurrent:   true,
			FileName:    strings.TrimSpace(file.FileName),
			ContentType: file.ContentType,
			Size:        obj.Size,
			Location:    obj.Location,
			Checksum:    obj.Checksum,
			Notes:       strings.TrimSpace(notes),
			UploadedBy:  p.UserID,
			UploadedAt:  now(txCtx),
		}
		if err := s.store.CreateContractVersion(txCtx, contract); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict, "contract version %d already exists", contract.Version)
			}
			return storeErr(err, "failed to record contract")
		}

		from = locked.Status
		details := map[string]any{
			"contract_id": contract.ID.String(),
			"version":     contract.Version,
			"file_name":   contract.FileName,
		}
		if locked.Status == models.StatusContractPending {
			if err := s.advance(txCtx, p, locked, edge{target: models.StatusContractUploaded}); err != nil {
				return err
			}
			details["from"] = string(from)
			details["to"] = string(locked.Status)
		} else {
			locked.Touch(now(txCtx))
			if err := s.store.UpdatePolicy(txCtx, locked); err != nil {
				return storeErr(err, "failed to update policy")
			}
		}
		out, updated = contract, locked
		return s.appendActivity(txCtx, locked.ID, models.ActionContractUploaded, "Contract uploaded",
			details, performerFor(txCtx, p))
	})
	if err != nil {
		s.discardObject(ctx, obj.Location)
		return nil, err
	}

	if updated.Status != from {
		s.transitioned(ctx, p, updated, from)
	}
	s.logAudit(ctx, string(models.ActionContractUploaded),
		"policy_id", out.PolicyID.String(),
		"contract_id", out.ID.String(),
		"version", out.Version,
		"user_id", auditUser(p),
	)
	return out, nil
}

// checkContractUploadable allows uploads from CONTRACT_PENDING until the
// contract is signed.
func checkContractUploadable(policy *models.Policy) error {
	switch policy.Status {
	case models.StatusContractPending, models.StatusContractUploaded:
		return nil
	}
	return dErrors.Newf(dErrors.CodeStateConflict, "contracts cannot be uploaded while the policy is %s", policy.Status)
}

// ListContracts returns every version, oldest first.
func (s *Service) ListContracts(ctx context.Context, p access.Principal, policyID id.PolicyID) ([]*models.Contract, error) {
	if _, err := s.GetPolicy(ctx, p, policyID); err != nil {
		return nil, err
	}
	contracts, err := s.store.ListContracts(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load contracts")
	}
	return contracts, nil
}

func (s *Service) CurrentContract(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Contract, error) {
	if _, err := s.GetPolicy(ctx, p, policyID); err != nil {
		return nil, err
	}
	contract, err := s.store.CurrentContract(ctx, policyID)
	if err != nil {
		return nil, notFoundOr(err, "contract")
	}
	return contract, nil
}
