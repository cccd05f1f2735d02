package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/requestcontext"
)

const (
	// HeaderGatewaySignature carries "sha256=<hex hmac of the raw body>".
	HeaderGatewaySignature = "X-Gateway-Signature"
	maxWebhookBytes        = 64 << 10
)

// HandleCreatePayment handles POST /policies/{policyID}/payments.
func (h *Handler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreatePaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	payment, err := h.service.CreatePayment(ctx, p, policyID, req)
	if err != nil {
		h.fail(ctx, w, "create_payment", err)
		return
	}
	h.logger.InfoContext(ctx, "payment created",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policyID,
		"payment_id", payment.ID,
		"method", payment.Method,
	)
	httputil.WriteJSON(w, http.StatusCreated, payment)
}

// HandleListPayments handles GET /policies/{policyID}/payments.
func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(ctx, p, policyID)
	if err != nil {
		h.fail(ctx, w, "list_payments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PaymentListResponse{Payments: nonNil(payments)})
}

// HandleManualPayment handles POST /payments/{paymentID}/manual.
func (h *Handler) HandleManualPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "paymentID", id.ParsePaymentID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ManualPaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	payment, err := h.service.RecordManualPayment(ctx, p, paymentID, req)
	if err != nil {
		h.fail(ctx, w, "manual_payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

// HandleRefundPayment handles POST /payments/{paymentID}/refund.
func (h *Handler) HandleRefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "paymentID", id.ParsePaymentID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.RefundRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	payment, err := h.service.RefundPayment(ctx, p, paymentID, req)
	if err != nil {
		h.fail(ctx, w, "refund_payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payment)
}

// HandleGatewayWebhook handles POST /webhooks/payments. Duplicates and events
// for unknown sessions are acknowledged with 200 so the gateway stops
// redelivering; only transient failures return 5xx.
func (h *Handler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read body"))
		return
	}
	if !h.validSignature(body, r.Header.Get(HeaderGatewaySignature)) {
		h.logger.WarnContext(ctx, "gateway webhook signature mismatch",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature"))
		return
	}

	var event models.GatewayEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&event); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event body"))
		return
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.RecordGatewayEvent(ctx, &event)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "gateway event for unknown session",
				"request_id", requestID,
				"event_id", event.ID,
				"session_id", event.SessionID,
			)
			httputil.WriteJSON(w, http.StatusOK, models.GatewayEventResult{})
			return
		}
		h.fail(ctx, w, "gateway_event", err)
		return
	}
	h.logger.InfoContext(ctx, "gateway event recorded",
		"request_id", requestID,
		"event_id", event.ID,
		"kind", event.Kind,
		"applied", result.Applied,
		"duplicate", result.Duplicate,
		"became_fully_paid", result.BecameFullyPaid,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// validSignature fails closed: without a configured secret every webhook is
// rejected unless unsigned delivery was explicitly allowed.
func (h *Handler) validSignature(body []byte, header string) bool {
	if len(h.webhookSecret) == 0 {
		return h.allowUnsigned
	}
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.webhookSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignWebhook returns the signature header value for body.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
