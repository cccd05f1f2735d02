package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"leasecover/internal/platform/postgres"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	"leasecover/pkg/platform/sentinel"
	txcontext "leasecover/pkg/platform/tx"
)

// Postgres persists the policy aggregate. Every method joins the unit of
// work carried in ctx when there is one.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: txcontext.DefaultTimeout}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx opens a transaction, hands it to fn through ctx and commits when
// fn succeeds. Nested calls join the outer transaction.
func (s *Postgres) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	ctx, cancel, err := txcontext.Bound(ctx, s.timeout)
	defer cancel()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullableUUID[T ~[16]byte](v *T) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func fromNullUUID[T ~[16]byte](n uuid.NullUUID) *T {
	if !n.Valid {
		return nil
	}
	v := T(n.UUID)
	return &v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func affectedOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// --- policies ---

const policyColumns = `
	id, policy_number, status, guarantor_type,
	property_address, property_type, property_description,
	rent_amount, deposit_amount, contract_length_months, start_date, end_date, total_price,
	created_by, created_at, updated_at,
	invitations_sent_at, investigation_started_at, investigation_completed_at,
	approved_at, approved_by, contract_uploaded_at, contract_signed_at,
	activated_at, expired_at, cancelled_at, payments_completed_at,
	cancellation_reason, cancellation_comment`

func policyArgs(p *models.Policy) []any {
	return []any{
		uuid.UUID(p.ID), p.Number, string(p.Status), string(p.GuarantorType),
		p.Property.Address, string(p.Property.Type), p.Property.Description,
		p.Terms.RentAmount, p.Terms.DepositAmount, p.Terms.ContractLengthMonths, p.Terms.StartDate, p.Terms.EndDate, p.Terms.TotalPrice,
		uuid.UUID(p.CreatedBy), p.CreatedAt, p.UpdatedAt,
		p.InvitationsSentAt, p.InvestigationStartedAt, p.InvestigationCompletedAt,
		p.ApprovedAt, nullableUUID(p.ApprovedBy), p.ContractUploadedAt, p.ContractSignedAt,
		p.ActivatedAt, p.ExpiredAt, p.CancelledAt, p.PaymentsCompletedAt,
		string(p.CancellationReason), p.CancellationComment,
	}
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var (
		p                              models.Policy
		policyID, createdBy            uuid.UUID
		approvedBy                     uuid.NullUUID
		status, guarantor, propType    string
		cancellationReason             string
	)
	err := row.Scan(
		&policyID, &p.Number, &status, &guarantor,
		&p.Property.Address, &propType, &p.Property.Description,
		&p.Terms.RentAmount, &p.Terms.DepositAmount, &p.Terms.ContractLengthMonths, &p.Terms.StartDate, &p.Terms.EndDate, &p.Terms.TotalPrice,
		&createdBy, &p.CreatedAt, &p.UpdatedAt,
		&p.InvitationsSentAt, &p.InvestigationStartedAt, &p.InvestigationCompletedAt,
		&p.ApprovedAt, &approvedBy, &p.ContractUploadedAt, &p.ContractSignedAt,
		&p.ActivatedAt, &p.ExpiredAt, &p.CancelledAt, &p.PaymentsCompletedAt,
		&cancellationReason, &p.CancellationComment,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PolicyID(policyID)
	p.CreatedBy = id.UserID(createdBy)
	p.ApprovedBy = fromNullUUID[id.UserID](approvedBy)
	p.Status = models.Status(status)
	p.GuarantorType = models.GuarantorType(guarantor)
	p.Property.Type = models.PropertyType(propType)
	p.CancellationReason = models.CancellationReason(cancellationReason)
	return &p, nil
}

func (s *Postgres) CreatePolicy(ctx context.Context, p *models.Policy) error {
	query := `INSERT INTO policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`
	if _, err := s.execer(ctx).ExecContext(ctx, query, policyArgs(p)...); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *Postgres) GetPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	p, err := scanPolicy(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1`, uuid.UUID(policyID)))
	if err != nil {
		return nil, notFound(err, "get policy")
	}
	return p, nil
}

// LockPolicy takes the row lock every mutation starts with.
func (s *Postgres) LockPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	p, err := scanPolicy(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1 FOR UPDATE`, uuid.UUID(policyID)))
	if err != nil {
		return nil, notFound(err, "lock policy")
	}
	return p, nil
}

func (s *Postgres) UpdatePolicy(ctx context.Context, p *models.Policy) error {
	query := `
		UPDATE policies SET
			status = $2, guarantor_type = $3,
			property_address = $4, property_type = $5, property_description = $6,
			rent_amount = $7, deposit_amount = $8, contract_length_months = $9,
			start_date = $10, end_date = $11, total_price = $12, updated_at = $13,
			invitations_sent_at = $14, investigation_started_at = $15, investigation_completed_at = $16,
			approved_at = $17, approved_by = $18, contract_uploaded_at = $19, contract_signed_at = $20,
			activated_at = $21, expired_at = $22, cancelled_at = $23, payments_completed_at = $24,
			cancellation_reason = $25, cancellation_comment = $26
		WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), string(p.Status), string(p.GuarantorType),
		p.Property.Address, string(p.Property.Type), p.Property.Description,
		p.Terms.RentAmount, p.Terms.DepositAmount, p.Terms.ContractLengthMonths,
		p.Terms.StartDate, p.Terms.EndDate, p.Terms.TotalPrice, p.UpdatedAt,
		p.InvitationsSentAt, p.InvestigationStartedAt, p.InvestigationCompletedAt,
		p.ApprovedAt, nullableUUID(p.ApprovedBy), p.ContractUploadedAt, p.ContractSignedAt,
		p.ActivatedAt, p.ExpiredAt, p.CancelledAt, p.PaymentsCompletedAt,
		string(p.CancellationReason), p.CancellationComment,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return affectedOne(res, "update policy")
}

// ListPolicies returns newest first.
func (s *Postgres) ListPolicies(ctx context.Context, filter models.PolicyFilter) ([]*models.Policy, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses = append(statuses, string(st))
	}
	query := `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
		  AND ($2::uuid IS NULL OR created_by = $2::uuid)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`
	rows, err := s.execer(ctx).QueryContext(ctx, query,
		pq.Array(statuses), nullableUUID(filter.CreatedBy), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	out := []*models.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]id.PolicyID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id FROM policies
		WHERE status = $1 AND end_date <= $2
		ORDER BY end_date
		LIMIT $3`, string(models.StatusActive), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list policies due for expiry: %w", err)
	}
	defer rows.Close()

	var out []id.PolicyID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan policy id: %w", err)
		}
		out = append(out, id.PolicyID(u))
	}
	return out, rows.Err()
}

// --- actors ---

const actorColumns = `
	id, policy_id, actor_type, entity_kind,
	first_name, middle_name, paternal_last_name, maternal_last_name,
	company_name, legal_rep_name, tax_id, curp, nationality, passport_number,
	email, phone, address, guarantee_method,
	is_primary, ownership_percentage, information_complete, completed_at,
	verification_status, rejection_reason, verified_at, verified_by,
	token_id, token_expires_at, invitation_sent_at, archived_at, replaced_by,
	created_at, updated_at`

func actorArgs(a *models.Actor) []any {
	return []any{
		uuid.UUID(a.ID), uuid.UUID(a.PolicyID), string(a.Type), string(a.Kind),
		a.Identity.FirstName, a.Identity.MiddleName, a.Identity.PaternalLastName, a.Identity.MaternalLastName,
		a.Identity.CompanyName, a.Identity.LegalRepName, a.Identity.TaxID, a.Identity.CURP,
		string(a.Identity.Nationality), a.Identity.PassportNumber,
		a.Contact.Email, a.Contact.Phone, a.Contact.Address, string(a.GuaranteeMethod),
		a.IsPrimary, a.OwnershipPercentage, a.InformationComplete, a.CompletedAt,
		string(a.VerificationStatus), a.RejectionReason, a.VerifiedAt, nullableUUID(a.VerifiedBy),
		a.TokenID, a.TokenExpiresAt, a.InvitationSentAt, a.ArchivedAt, nullableUUID(a.ReplacedBy),
		a.CreatedAt, a.UpdatedAt,
	}
}

func scanActor(row rowScanner) (*models.Actor, error) {
	var (
		a                                       models.Actor
		actorID, policyID                       uuid.UUID
		verifiedBy, replacedBy                  uuid.NullUUID
		actorType, kind, nationality, guarantee string
		verification                            string
	)
	err := row.Scan(
		&actorID, &policyID, &actorType, &kind,
		&a.Identity.FirstName, &a.Identity.MiddleName, &a.Identity.PaternalLastName, &a.Identity.MaternalLastName,
		&a.Identity.CompanyName, &a.Identity.LegalRepName, &a.Identity.TaxID, &a.Identity.CURP,
		&nationality, &a.Identity.PassportNumber,
		&a.Contact.Email, &a.Contact.Phone, &a.Contact.Address, &guarantee,
		&a.IsPrimary, &a.OwnershipPercentage, &a.InformationComplete, &a.CompletedAt,
		&verification, &a.RejectionReason, &a.VerifiedAt, &verifiedBy,
		&a.TokenID, &a.TokenExpiresAt, &a.InvitationSentAt, &a.ArchivedAt, &replacedBy,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ID = id.ActorID(actorID)
	a.PolicyID = id.PolicyID(policyID)
	a.Type = models.ActorType(actorType)
	a.Kind = models.EntityKind(kind)
	a.Identity.Nationality = models.Nationality(nationality)
	a.GuaranteeMethod = models.GuaranteeMethod(guarantee)
	a.VerificationStatus = models.VerificationStatus(verification)
	a.VerifiedBy = fromNullUUID[id.UserID](verifiedBy)
	a.ReplacedBy = fromNullUUID[id.ActorID](replacedBy)
	return &a, nil
}

func (s *Postgres) CreateActor(ctx context.Context, a *models.Actor) error {
	query := `INSERT INTO policy_actors (` + actorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)`
	if _, err := s.execer(ctx).ExecContext(ctx, query, actorArgs(a)...); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateActor(ctx context.Context, a *models.Actor) error {
	query := `
		UPDATE policy_actors SET
			entity_kind = $3,
			first_name = $4, middle_name = $5, paternal_last_name = $6, maternal_last_name = $7,
			company_name = $8, legal_rep_name = $9, tax_id = $10, curp = $11,
			nationality = $12, passport_number = $13,
			email = $14, phone = $15, address = $16, guarantee_method = $17,
			is_primary = $18, ownership_percentage = $19, information_complete = $20, completed_at = $21,
			verification_status = $22, rejection_reason = $23, verified_at = $24, verified_by = $25,
			token_id = $26, token_expires_at = $27, invitation_sent_at = $28,
			archived_at = $29, replaced_by = $30, updated_at = $31
		WHERE id = $1 AND policy_id = $2`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID), uuid.UUID(a.PolicyID), string(a.Kind),
		a.Identity.FirstName, a.Identity.MiddleName, a.Identity.PaternalLastName, a.Identity.MaternalLastName,
		a.Identity.CompanyName, a.Identity.LegalRepName, a.Identity.TaxID, a.Identity.CURP,
		string(a.Identity.Nationality), a.Identity.PassportNumber,
		a.Contact.Email, a.Contact.Phone, a.Contact.Address, string(a.GuaranteeMethod),
		a.IsPrimary, a.OwnershipPercentage, a.InformationComplete, a.CompletedAt,
		string(a.VerificationStatus), a.RejectionReason, a.VerifiedAt, nullableUUID(a.VerifiedBy),
		a.TokenID, a.TokenExpiresAt, a.InvitationSentAt,
		a.ArchivedAt, nullableUUID(a.ReplacedBy), a.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			return fmt.Errorf("update actor violates %s: %w", constraint, sentinel.ErrConflict)
		}
		return fmt.Errorf("update actor: %w", err)
	}
	return affectedOne(res, "update actor")
}

func (s *Postgres) GetActor(ctx context.Context, actorID id.ActorID) (*models.Actor, error) {
	a, err := scanActor(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+actorColumns+` FROM policy_actors WHERE id = $1`, uuid.UUID(actorID)))
	if err != nil {
		return nil, notFound(err, "get actor")
	}
	return a, nil
}

func (s *Postgres) ListActors(ctx context.Context, policyID id.PolicyID) ([]*models.Actor, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+actorColumns+` FROM policy_actors WHERE policy_id = $1 ORDER BY seq`, uuid.UUID(policyID))
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	out := []*models.Actor{}
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- documents ---

const documentColumns = `
	id, actor_id, policy_id, category, document_type, file_name, content_type,
	size_bytes, location, checksum, uploaded_by_type, uploaded_by_id, uploaded_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d                          models.Document
		docID, actorID, policyID   uuid.UUID
		category, uploadedByType   string
	)
	err := row.Scan(&docID, &actorID, &policyID, &category, &d.DocumentType, &d.FileName, &d.ContentType,
		&d.Size, &d.Location, &d.Checksum, &uploadedByType, &d.UploadedByID, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	d.ID = id.DocumentID(docID)
	d.ActorID = id.ActorID(actorID)
	d.PolicyID = id.PolicyID(policyID)
	d.Category = models.DocumentCategory(category)
	d.UploadedByType = models.PerformerType(uploadedByType)
	return &d, nil
}

func (s *Postgres) CreateDocument(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO actor_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(d.ID), uuid.UUID(d.ActorID), uuid.UUID(d.PolicyID), string(d.Category), d.DocumentType,
		d.FileName, d.ContentType, d.Size, d.Location, d.Checksum,
		string(d.UploadedByType), d.UploadedByID, d.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Postgres) GetDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	d, err := scanDocument(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM actor_documents WHERE id = $1`, uuid.UUID(documentID)))
	if err != nil {
		return nil, notFound(err, "get document")
	}
	return d, nil
}

func (s *Postgres) DeleteDocument(ctx context.Context, documentID id.DocumentID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM actor_documents WHERE id = $1`, uuid.UUID(documentID))
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return affectedOne(res, "delete document")
}

func (s *Postgres) ListDocumentsByActor(ctx context.Context, actorID id.ActorID) ([]*models.Document, error) {
	return s.listDocuments(ctx, `actor_id = $1`, uuid.UUID(actorID))
}

func (s *Postgres) ListDocumentsByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Document, error) {
	return s.listDocuments(ctx, `policy_id = $1`, uuid.UUID(policyID))
}

func (s *Postgres) listDocuments(ctx context.Context, where string, arg any) ([]*models.Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM actor_documents WHERE `+where+` ORDER BY seq`, arg)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- references ---

const referenceColumns = `
	id, actor_id, policy_id, kind, name, phone, email, relationship, company_name, created_at`

func (s *Postgres) CreateReference(ctx context.Context, r *models.Reference) error {
	query := `INSERT INTO actor_references (` + referenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.ActorID), uuid.UUID(r.PolicyID), string(r.Kind),
		r.Name, r.Phone, r.Email, r.Relationship, r.CompanyName, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

func (s *Postgres) ListReferencesByActor(ctx context.Context, actorID id.ActorID) ([]*models.Reference, error) {
	return s.listReferences(ctx, `actor_id = $1`, uuid.UUID(actorID))
}

func (s *Postgres) ListReferencesByPolicy(ctx context.Context, policyID id.PolicyID) ([]*models.Reference, error) {
	return s.listReferences(ctx, `policy_id = $1`, uuid.UUID(policyID))
}

func (s *Postgres) listReferences(ctx context.Context, where string, arg any) ([]*models.Reference, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+referenceColumns+` FROM actor_references WHERE `+where+` ORDER BY seq`, arg)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer rows.Close()

	out := []*models.Reference{}
	for rows.Next() {
		var (
			r                       models.Reference
			refID, actorID, policyID uuid.UUID
			kind                    string
		)
		if err := rows.Scan(&refID, &actorID, &policyID, &kind,
			&r.Name, &r.Phone, &r.Email, &r.Relationship, &r.CompanyName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		r.ID = id.ReferenceID(refID)
		r.ActorID = id.ActorID(actorID)
		r.PolicyID = id.PolicyID(policyID)
		r.Kind = models.ReferenceKind(kind)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- investigations ---

const investigationColumns = `
	id, policy_id, started_by, started_at, verdict, risk_level, rejection_reason, rejected_by,
	notes, completed_by, completed_at, response_time_hours,
	landlord_decision, landlord_notes, landlord_decided_at, landlord_override`

func (s *Postgres) CreateInvestigation(ctx context.Context, inv *models.Investigation) error {
	query := `INSERT INTO investigations (` + investigationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := s.execer(ctx).ExecContext(ctx, query, investigationArgs(inv)...)
	if err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert investigation: %w", err)
	}
	return nil
}

func investigationArgs(inv *models.Investigation) []any {
	return []any{
		uuid.UUID(inv.ID), uuid.UUID(inv.PolicyID), uuid.UUID(inv.StartedBy), inv.StartedAt,
		string(inv.Verdict), string(inv.RiskLevel), inv.RejectionReason, nullableUUID(inv.RejectedBy),
		inv.Notes, nullableUUID(inv.CompletedBy), inv.CompletedAt, inv.ResponseTimeHours,
		string(inv.LandlordDecision), inv.LandlordNotes, inv.LandlordDecidedAt, inv.LandlordOverride,
	}
}

func (s *Postgres) GetInvestigation(ctx context.Context, policyID id.PolicyID) (*models.Investigation, error) {
	var (
		inv                               models.Investigation
		invID, pid, startedBy             uuid.UUID
		rejectedBy, completedBy           uuid.NullUUID
		verdict, risk, decision           string
		hours                             sql.NullInt64
	)
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+investigationColumns+` FROM investigations WHERE policy_id = $1`, uuid.UUID(policyID)).Scan(
		&invID, &pid, &startedBy, &inv.StartedAt, &verdict, &risk, &inv.RejectionReason, &rejectedBy,
		&inv.Notes, &completedBy, &inv.CompletedAt, &hours,
		&decision, &inv.LandlordNotes, &inv.LandlordDecidedAt, &inv.LandlordOverride,
	)
	if err != nil {
		return nil, notFound(err, "get investigation")
	}
	inv.ID = id.InvestigationID(invID)
	inv.PolicyID = id.PolicyID(pid)
	inv.StartedBy = id.UserID(startedBy)
	inv.Verdict = models.Verdict(verdict)
	inv.RiskLevel = models.RiskLevel(risk)
	inv.LandlordDecision = models.LandlordDecision(decision)
	inv.RejectedBy = fromNullUUID[id.UserID](rejectedBy)
	inv.CompletedBy = fromNullUUID[id.UserID](completedBy)
	if hours.Valid {
		h := int(hours.Int64)
		inv.ResponseTimeHours = &h
	}
	return &inv, nil
}

func (s *Postgres) UpdateInvestigation(ctx context.Context, inv *models.Investigation) error {
	query := `
		UPDATE investigations SET
			verdict = $3, risk_level = $4, rejection_reason = $5, rejected_by = $6,
			notes = $7, completed_by = $8, completed_at = $9, response_time_hours = $10,
			landlord_decision = $11, landlord_notes = $12, landlord_decided_at = $13, landlord_override = $14
		WHERE id = $1 AND policy_id = $2`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(inv.ID), uuid.UUID(inv.PolicyID),
		string(inv.Verdict), string(inv.RiskLevel), inv.RejectionReason, nullableUUID(inv.RejectedBy),
		inv.Notes, nullableUUID(inv.CompletedBy), inv.CompletedAt, inv.ResponseTimeHours,
		string(inv.LandlordDecision), inv.LandlordNotes, inv.LandlordDecidedAt, inv.LandlordOverride,
	)
	if err != nil {
		return fmt.Errorf("update investigation: %w", err)
	}
	return affectedOne(res, "update investigation")
}

// --- payments ---

const paymentColumns = `
	id, policy_id, payer_type, description, subtotal, tax_rate, tax_amount, amount,
	status, method, gateway_session_id, checkout_url, external_reference, last_event_id,
	paid_at, failed_at, refunded_at, refund_reason, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p                            models.Payment
		paymentID, policyID          uuid.UUID
		payer, status, method        string
		session                      sql.NullString
	)
	err := row.Scan(&paymentID, &policyID, &payer, &p.Description, &p.Subtotal, &p.TaxRate, &p.TaxAmount, &p.Amount,
		&status, &method, &session, &p.CheckoutURL, &p.ExternalReference, &p.LastEventID,
		&p.PaidAt, &p.FailedAt, &p.RefundedAt, &p.RefundReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.PaymentID(paymentID)
	p.PolicyID = id.PolicyID(policyID)
	p.PayerType = models.PayerType(payer)
	p.Status = models.PaymentStatus(status)
	p.Method = models.PaymentMethod(method)
	p.GatewaySessionID = session.String
	return &p, nil
}

func (s *Postgres) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.PolicyID), string(p.PayerType), p.Description,
		p.Subtotal, p.TaxRate, p.TaxAmount, p.Amount,
		string(p.Status), string(p.Method), nullableString(p.GatewaySessionID), p.CheckoutURL,
		p.ExternalReference, p.LastEventID,
		p.PaidAt, p.FailedAt, p.RefundedAt, p.RefundReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Postgres) GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := scanPayment(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, uuid.UUID(paymentID)))
	if err != nil {
		return nil, notFound(err, "get payment")
	}
	return p, nil
}

func (s *Postgres) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	p, err := scanPayment(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_session_id = $1`, sessionID))
	if err != nil {
		return nil, notFound(err, "get payment by session")
	}
	return p, nil
}

func (s *Postgres) LockPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := scanPayment(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, uuid.UUID(paymentID)))
	if err != nil {
		return nil, notFound(err, "lock payment")
	}
	return p, nil
}

func (s *Postgres) UpdatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		UPDATE payments SET
			status = $2, method = $3, checkout_url = $4, external_reference = $5, last_event_id = $6,
			paid_at = $7, failed_at = $8, refunded_at = $9, refund_reason = $10, updated_at = $11
		WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), string(p.Status), string(p.Method), p.CheckoutURL, p.ExternalReference, p.LastEventID,
		p.PaidAt, p.FailedAt, p.RefundedAt, p.RefundReason, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return affectedOne(res, "update payment")
}

func (s *Postgres) ListPayments(ctx context.Context, policyID id.PolicyID) ([]*models.Payment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE policy_id = $1 ORDER BY seq`, uuid.UUID(policyID))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- contracts ---

const contractColumns = `
	id, policy_id, version, is_current, file_name, content_type, size_bytes,
	location, checksum, notes, uploaded_by, uploaded_at`

func scanContract(row rowScanner) (*models.Contract, error) {
	var (
		c                               models.Contract
		contractID, policyID, uploader  uuid.UUID
	)
	err := row.Scan(&contractID, &policyID, &c.Version, &c.IsCurrent, &c.FileName, &c.ContentType, &c.Size,
		&c.Location, &c.Checksum, &c.Notes, &uploader, &c.UploadedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.ContractID(contractID)
	c.PolicyID = id.PolicyID(policyID)
	c.UploadedBy = id.UserID(uploader)
	return &c, nil
}

// CreateContractVersion clears the current flag and inserts the new current
// row in the caller's transaction. The unique indexes turn a lost version
// race into sentinel.ErrConflict.
func (s *Postgres) CreateContractVersion(ctx context.Context, c *models.Contract) error {
	exec := s.execer(ctx)
	if _, err := exec.ExecContext(ctx,
		`UPDATE contracts SET is_current = FALSE WHERE policy_id = $1 AND is_current`, uuid.UUID(c.PolicyID)); err != nil {
		return fmt.Errorf("clear current contract: %w", err)
	}
	query := `INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.PolicyID), c.Version, c.FileName, c.ContentType, c.Size,
		c.Location, c.Checksum, c.Notes, uuid.UUID(c.UploadedBy), c.UploadedAt,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			return fmt.Errorf("contract version %d (%s): %w", c.Version, constraint, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert contract: %w", err)
	}
	c.IsCurrent = true
	return nil
}

func (s *Postgres) ListContracts(ctx context.Context, policyID id.PolicyID) ([]*models.Contract, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE policy_id = $1 ORDER BY version`, uuid.UUID(policyID))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	out := []*models.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) CurrentContract(ctx context.Context, policyID id.PolicyID) (*models.Contract, error) {
	c, err := scanContract(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE policy_id = $1 AND is_current`, uuid.UUID(policyID)))
	if err != nil {
		return nil, notFound(err, "current contract")
	}
	return c, nil
}

// --- activities ---

const activityColumns = `
	id, policy_id, action, description, details, performed_by_type, performed_by_id,
	ip_address, user_agent, created_at`

func (s *Postgres) AppendActivity(ctx context.Context, a *models.Activity) error {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	query := `INSERT INTO policy_activities (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID), uuid.UUID(a.PolicyID), string(a.Action), a.Description, string(payload),
		string(a.PerformedByType), a.PerformedByID, a.IPAddress, a.UserAgent, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *Postgres) ListActivities(ctx context.Context, policyID id.PolicyID) ([]*models.Activity, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+activityColumns+`, published_at FROM policy_activities WHERE policy_id = $1 ORDER BY seq`,
		uuid.UUID(policyID))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := []*models.Activity{}
	for rows.Next() {
		var (
			a                     models.Activity
			activityID, pid       uuid.UUID
			action, performerType string
			payload               []byte
		)
		if err := rows.Scan(&activityID, &pid, &action, &a.Description, &payload, &performerType, &a.PerformedByID,
			&a.IPAddress, &a.UserAgent, &a.CreatedAt, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if err := json.Unmarshal(payload, &a.Details); err != nil {
			return nil, fmt.Errorf("unmarshal activity details: %w", err)
		}
		a.ID = id.ActivityID(activityID)
		a.PolicyID = id.PolicyID(pid)
		a.Action = models.Action(action)
		a.PerformedByType = models.PerformerType(performerType)
		out = append(out, &a)
	}
	return out, rows.Err()
}
