package models

import (
	"time"

	id "leasecover/pkg/domain"
)

// Contract is one uploaded version of a policy's lease contract.
//
// Invariants:
//   - Versions per policy are 1..n with no gaps
//   - At most one contract per policy has IsCurrent set
//   - Rows are append-only; only IsCurrent is ever cleared
type Contract struct {
	ID          id.ContractID `json:"id"`
	PolicyID    id.PolicyID   `json:"policy_id"`
	Version     int           `json:"version"`
	IsCurrent   bool          `json:"is_current"`
	FileName    string        `json:"file_name"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	Location    string        `json:"-"`
	Checksum    string        `json:"checksum"`
	Notes       string        `json:"notes,omitempty"`
	UploadedBy  id.UserID     `json:"uploaded_by"`
	UploadedAt  time.Time     `json:"uploaded_at"`
}

// NextContractVersion returns max(version)+1, or 1 for the first upload.
func NextContractVersion(existing []*Contract) int {
	next := 1
	for _, c := range existing {
		if c.Version >= next {
			next = c.Version + 1
		}
	}
	return next
}
