package models

import (
	"strings"
	"time"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// DocumentCategory is the fixed document taxonomy.
type DocumentCategory string

const (
	DocIdentification         DocumentCategory = "IDENTIFICATION"
	DocIncomeProof            DocumentCategory = "INCOME_PROOF"
	DocAddressProof           DocumentCategory = "ADDRESS_PROOF"
	DocBankStatement          DocumentCategory = "BANK_STATEMENT"
	DocPropertyDeed           DocumentCategory = "PROPERTY_DEED"
	DocPropertyTaxStatement   DocumentCategory = "PROPERTY_TAX_STATEMENT"
	DocTaxStatusCertificate   DocumentCategory = "TAX_STATUS_CERTIFICATE"
	DocCompanyConstitution    DocumentCategory = "COMPANY_CONSTITUTION"
	DocLegalPowers            DocumentCategory = "LEGAL_POWERS"
	DocLegalRepIdentification DocumentCategory = "LEGAL_REP_IDENTIFICATION"
	DocPassport               DocumentCategory = "PASSPORT"
	DocImmigrationDocument    DocumentCategory = "IMMIGRATION_DOCUMENT"
	DocEmploymentLetter       DocumentCategory = "EMPLOYMENT_LETTER"
	DocPropertyRegistry       DocumentCategory = "PROPERTY_REGISTRY"
	DocOther                  DocumentCategory = "OTHER"
)

var documentCategories = map[DocumentCategory]struct{}{
	DocIdentification: {}, DocIncomeProof: {}, DocAddressProof: {}, DocBankStatement: {},
	DocPropertyDeed: {}, DocPropertyTaxStatement: {}, DocTaxStatusCertificate: {},
	DocCompanyConstitution: {}, DocLegalPowers: {}, DocLegalRepIdentification: {},
	DocPassport: {}, DocImmigrationDocument: {}, DocEmploymentLetter: {},
	DocPropertyRegistry: {}, DocOther: {},
}

func (c DocumentCategory) IsValid() bool {
	_, ok := documentCategories[c]
	return ok
}

func ParseDocumentCategory(raw string) (DocumentCategory, error) {
	c := DocumentCategory(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown document category %q", raw)
	}
	return c, nil
}

// Document is a file attached to one actor. Location is the opaque reference
// returned by the storage collaborator.
type Document struct {
	ID             id.DocumentID    `json:"id"`
	ActorID        id.ActorID       `json:"actor_id"`
	PolicyID       id.PolicyID      `json:"policy_id"`
	Category       DocumentCategory `json:"category"`
	DocumentType   string           `json:"document_type,omitempty"`
	FileName       string           `json:"file_name"`
	ContentType    string           `json:"content_type"`
	Size           int64            `json:"size"`
	Location       string           `json:"-"`
	Checksum       string           `json:"checksum"`
	UploadedByType PerformerType    `json:"uploaded_by_type"`
	UploadedByID   string           `json:"uploaded_by_id"`
	UploadedAt     time.Time        `json:"uploaded_at"`
}

// FileUpload is a binary handed to the service by the transport layer.
type FileUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     []byte
}

// MaxUploadBytes bounds both document and contract uploads.
const MaxUploadBytes = 20 << 20

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
}

// Validate checks the upload envelope; content inspection is the storage
// collaborator's concern.
func (f *FileUpload) Validate() error {
	if f == nil || len(f.Content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "file is required")
	}
	if strings.TrimSpace(f.FileName) == "" {
		return dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	if len(f.Content) > MaxUploadBytes {
		return dErrors.New(dErrors.CodeValidation, "file exceeds 20MB")
	}
	if _, ok := allowedContentTypes[f.ContentType]; !ok {
		return dErrors.Newf(dErrors.CodeValidation, "content type %q is not accepted", f.ContentType)
	}
	return nil
}
