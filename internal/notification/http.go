package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "leasecover/pkg/domain-errors"
)

// HTTPNotifier posts notifications to an outbound mail service as JSON.
// Every non-2xx response is a delivery failure.
type HTTPNotifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPNotifier(endpoint, apiKey string, timeout time.Duration) *HTTPNotifier {
	return NewHTTPNotifierWithClient(endpoint, apiKey, &http.Client{Timeout: timeout})
}

func NewHTTPNotifierWithClient(endpoint, apiKey string, client *http.Client) *HTTPNotifier {
	return &HTTPNotifier{endpoint: endpoint, apiKey: apiKey, client: client}
}

type invitationMessage struct {
	Template       string    `json:"template"`
	PolicyID       string    `json:"policy_id"`
	PolicyNumber   string    `json:"policy_number"`
	ActorID        string    `json:"actor_id"`
	ActorType      string    `json:"actor_type"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type paymentsCompletedMessage struct {
	Template     string    `json:"template"`
	PolicyID     string    `json:"policy_id"`
	PolicyNumber string    `json:"policy_number"`
	Total        string    `json:"total"`
	Payments     int       `json:"payments"`
	CompletedAt  time.Time `json:"completed_at"`
}

func (n *HTTPNotifier) SendInvitation(ctx context.Context, inv Invitation) error {
	return n.post(ctx, invitationMessage{
		Template:       "actor_invitation",
		PolicyID:       inv.PolicyID.String(),
		PolicyNumber:   inv.PolicyNumber,
		ActorID:        inv.ActorID.String(),
		ActorType:      inv.ActorType,
		RecipientEmail: inv.RecipientEmail,
		RecipientName:  inv.RecipientName,
		Token:          inv.Token,
		ExpiresAt:      inv.ExpiresAt,
	})
}

func (n *HTTPNotifier) NotifyAllPaymentsCompleted(ctx context.Context, p PaymentsCompleted) error {
	return n.post(ctx, paymentsCompletedMessage{
		Template:     "payments_completed",
		PolicyID:     p.PolicyID.String(),
		PolicyNumber: p.PolicyNumber,
		Total:        p.Total.StringFixed(2),
		Payments:     p.Payments,
		CompletedAt:  p.CompletedAt,
	})
}

func (n *HTTPNotifier) post(ctx context.Context, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build notification request")
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "notification delivery timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeExternalService, "notification service unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dErrors.New(dErrors.CodeExternalService, fmt.Sprintf("notification service returned %d", resp.StatusCode))
	}
	return nil
}
