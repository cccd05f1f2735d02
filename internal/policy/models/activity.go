package models

import (
	"time"

	"github.com/mssola/useragent"

	id "leasecover/pkg/domain"
)

// Action is the closed set of activity codes.
type Action string

const (
	ActionPolicyCreated           Action = "policy_created"
	ActionStatusChanged           Action = "status_changed"
	ActionInvitationsSent         Action = "invitations_sent"
	ActionInvitationFailed        Action = "invitation_failed"
	ActionActorAdded              Action = "actor_added"
	ActionActorUpdated            Action = "actor_updated"
	ActionActorSubmitted          Action = "actor_submitted"
	ActionActorVerified           Action = "actor_verified"
	ActionActorReplaced           Action = "actor_replaced"
	ActionPrimaryLandlordChanged  Action = "primary_landlord_changed"
	ActionReferenceAdded          Action = "reference_added"
	ActionDocumentUploaded        Action = "document_uploaded"
	ActionDocumentDeleted         Action = "document_deleted"
	ActionInvestigationStarted    Action = "investigation_started"
	ActionInvestigationCompleted  Action = "investigation_completed"
	ActionLandlordDecision        Action = "landlord_decision_recorded"
	ActionPolicyApproved          Action = "policy_approved"
	ActionContractUploaded        Action = "contract_uploaded"
	ActionContractSigned          Action = "contract_signed"
	ActionPolicyActivated         Action = "policy_activated"
	ActionPolicyCancelled         Action = "policy_cancelled"
	ActionPolicyExpired           Action = "policy_expired"
	ActionPaymentCreated          Action = "payment_created"
	ActionPaymentCompleted        Action = "payment_completed"
	ActionPaymentFailed           Action = "payment_failed"
	ActionPaymentRefunded         Action = "payment_refunded"
	ActionAllPaymentsCompleted    Action = "all_payments_completed"
	ActionPaymentsCompletedFailed Action = "payments_completed_notification_failed"
)

// PerformerType identifies who caused an activity.
type PerformerType string

const (
	PerformerStaff   PerformerType = "staff"
	PerformerActor   PerformerType = "actor"
	PerformerSystem  PerformerType = "system"
	PerformerGateway PerformerType = "gateway"
)

// Performer is the resolved author of a mutation.
type Performer struct {
	Type      PerformerType
	ID        string
	IPAddress string
	UserAgent string
}

// SystemPerformer is used by background workers.
var SystemPerformer = Performer{Type: PerformerSystem, ID: "system"}

// Activity is an immutable audit entry. It doubles as the outbox row relayed
// to Kafka; PublishedAt is the only column written after insert.
type Activity struct {
	ID              id.ActivityID  `json:"id"`
	PolicyID        id.PolicyID    `json:"policy_id"`
	Action          Action         `json:"action"`
	Description     string         `json:"description"`
	Details         map[string]any `json:"details,omitempty"`
	PerformedByType PerformerType  `json:"performed_by_type"`
	PerformedByID   string         `json:"performed_by_id"`
	IPAddress       string         `json:"ip_address,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	PublishedAt     *time.Time     `json:"-"`
}

// NewActivity builds an entry authored by p. The raw User-Agent is reduced
// to a "Browser on OS" label.
func NewActivity(policyID id.PolicyID, action Action, description string, details map[string]any, p Performer, now time.Time) *Activity {
	return &Activity{
		ID:              id.NewActivityID(),
		PolicyID:        policyID,
		Action:          action,
		Description:     description,
		Details:         details,
		PerformedByType: p.Type,
		PerformedByID:   p.ID,
		IPAddress:       p.IPAddress,
		UserAgent:       UserAgentLabel(p.UserAgent),
		CreatedAt:       now,
	}
}

// UserAgentLabel renders a raw User-Agent header as "Browser on OS".
func UserAgentLabel(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	osName := ua.OSInfo().Name
	switch {
	case ua.Bot():
		return "Bot"
	case browser == "" && osName == "":
		return raw
	case osName == "":
		return browser
	case browser == "":
		return osName
	}
	return browser + " on " + osName
}
