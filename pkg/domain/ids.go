package domain

import (
	"github.com/google/uuid"

	dErrors "leasecover/pkg/domain-errors"
)

// Typed identifiers keep a PolicyID from being passed where an ActorID is
// expected. All are UUIDs on the wire and in storage.
type (
	UserID          uuid.UUID
	PolicyID        uuid.UUID
	ActorID         uuid.UUID
	DocumentID      uuid.UUID
	ReferenceID     uuid.UUID
	InvestigationID uuid.UUID
	PaymentID       uuid.UUID
	ContractID      uuid.UUID
	ActivityID      uuid.UUID
)

func (id UserID) String() string          { return uuid.UUID(id).String() }
func (id PolicyID) String() string        { return uuid.UUID(id).String() }
func (id ActorID) String() string         { return uuid.UUID(id).String() }
func (id DocumentID) String() string      { return uuid.UUID(id).String() }
func (id ReferenceID) String() string     { return uuid.UUID(id).String() }
func (id InvestigationID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string       { return uuid.UUID(id).String() }
func (id ContractID) String() string      { return uuid.UUID(id).String() }
func (id ActivityID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ContractID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id PolicyID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ActorID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ReferenceID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id InvestigationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PaymentID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ContractID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ActivityID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error          { return unmarshalID((*uuid.UUID)(id), b) }
func (id *PolicyID) UnmarshalText(b []byte) error        { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ActorID) UnmarshalText(b []byte) error         { return unmarshalID((*uuid.UUID)(id), b) }
func (id *DocumentID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ReferenceID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *InvestigationID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *PaymentID) UnmarshalText(b []byte) error       { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ContractID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ActivityID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }

func unmarshalID(dst *uuid.UUID, b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id")
	}
	*dst = parsed
	return nil
}

// NewPolicyID and friends mint fresh random identifiers.
func NewPolicyID() PolicyID               { return PolicyID(uuid.New()) }
func NewActorID() ActorID                 { return ActorID(uuid.New()) }
func NewDocumentID() DocumentID           { return DocumentID(uuid.New()) }
func NewReferenceID() ReferenceID         { return ReferenceID(uuid.New()) }
func NewInvestigationID() InvestigationID { return InvestigationID(uuid.New()) }
func NewPaymentID() PaymentID             { return PaymentID(uuid.New()) }
func NewContractID() ContractID           { return ContractID(uuid.New()) }
func NewActivityID() ActivityID           { return ActivityID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseUUID(s, "policy id")
	return PolicyID(u), err
}

func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s, "payment id")
	return PaymentID(u), err
}

func ParseContractID(s string) (ContractID, error) {
	u, err := parseUUID(s, "contract id")
	return ContractID(u), err
}

// parseUUID enforces the trust-boundary invariant shared by every ID type:
// non-empty, well-formed, and not the nil UUID.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
