package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"leasecover/internal/access"
	"leasecover/internal/gateway"
	"leasecover/internal/notification"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
)

const gatewayEventKeyPrefix = "gateway-event:"

// CreatePayment records one payment obligation. Card payments get a gateway
// checkout session before anything is written; a gateway failure leaves no
// payment behind.
func (s *Service) CreatePayment(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.CreatePaymentRequest) (out *models.Payment, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.CreatePayment", attribute.String("policy_id", policyID.String()))
	defer func() { s.finish(span, "CreatePayment", start, err) }()

	if err := p.Require(access.CapCreatePayment); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	policy, err := s.loadPolicy(ctx, p, policyID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(policy); err != nil {
		return nil, err
	}

	rate := models.DefaultTaxRate
	if req.TaxRate != nil {
		rate = *req.TaxRate
	}
	tax, total := models.ComputeTax(req.Subtotal, rate)
	payment := &models.Payment{
		ID:          id.NewPaymentID(),
		PolicyID:    policy.ID,
		PayerType:   req.PayerType,
		Description: req.Description,
		Subtotal:    req.Subtotal,
		TaxRate:     rate,
		TaxAmount:   tax,
		Amount:      total,
		Status:      models.PaymentPending,
		Method:      req.Method,
	}

	if req.Method == models.MethodCard {
		if s.gateway == nil {
			return nil, dErrors.New(dErrors.CodeInternal, "payment gateway is not configured")
		}
		session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
			PaymentID:   payment.ID,
			PolicyID:    policy.ID,
			Amount:      total,
			Currency:    s.currency,
			Description: paymentDescription(policy, req),
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to create checkout session")
		}
		payment.GatewaySessionID = session.ID
		payment.CheckoutURL = session.CheckoutURL
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.lockPolicy(txCtx, p, policyID)
		if err != nil {
			return err
		}
		if err := checkPayable(locked); err != nil {
			return err
		}
		at := now(txCtx)
		payment.CreatedAt = at
		payment.UpdatedAt = at
		if err := s.store.CreatePayment(txCtx, payment); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "checkout session is already bound to a payment")
			}
			return storeErr(err, "failed to create payment")
		}
		return s.appendActivity(txCtx, locked.ID, models.ActionPaymentCreated, "Payment created for "+string(payment.PayerType),
			map[string]any{
				"payment_id": payment.ID.String(),
				"payer_type": string(payment.PayerType),
				"method":     string(payment.Method),
				"subtotal":   payment.Subtotal.StringFixed(2),
				"tax":        payment.TaxAmount.StringFixed(2),
				"amount":     payment.Amount.StringFixed(2),
			}, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(models.ActionPaymentCreated),
		"policy_id", payment.PolicyID.String(),
		"payment_id", payment.ID.String(),
		"amount", payment.Amount.StringFixed(2),
		"user_id", auditUser(p),
	)
	return payment, nil
}

func checkPayable(policy *models.Policy) error {
	switch policy.Status {
	case models.StatusCancelled, models.StatusExpired, models.StatusActive:
		return dErrors.Newf(dErrors.CodeStateConflict, "payments cannot be created while the policy is %s", policy.Status)
	}
	return nil
}

func paymentDescription(policy *models.Policy, req *models.CreatePaymentRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return "Policy " + policy.Number + " (" + string(req.PayerType) + ")"
}

// RecordGatewayEvent applies a verified webhook event to its payment. Exact
// redeliveries are dropped by the deduper when one is configured; the
// transaction still rejects a repeated event id and never regresses a
// completed or refunded payment. The event that completes the last
// outstanding payment triggers the one-time "all payments completed" notice.
func (s *Service) RecordGatewayEvent(ctx context.Context, event *models.GatewayEvent) (out *models.GatewayEventResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.RecordGatewayEvent")
	defer func() { s.finish(span, "RecordGatewayEvent", start, err) }()

	if event == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "event is required")
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("event_kind", string(event.Kind)),
	)
	kind := string(event.Kind)

	key := gatewayEventKeyPrefix + event.ID
	claimed := false
	if s.dedupe != nil {
		first, err := s.dedupe.FirstDelivery(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "event dedupe unavailable, relying on the database",
				"event_id", event.ID,
				"error", err,
			)
		case !first:
			s.metrics.IncrementGatewayEvent(kind, "duplicate")
			return &models.GatewayEventResult{Duplicate: true}, nil
		default:
			claimed = true
		}
	}

	target, _ := event.Kind.Outcome()
	out = &models.GatewayEventResult{}
	var notice *notification.PaymentsCompleted
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.store.GetPaymentBySession(txCtx, event.SessionID)
		if err != nil {
			return notFoundOr(err, "payment")
		}
		policy, err := s.store.LockPolicy(txCtx, found.PolicyID)
		if err != nil {
			return notFoundOr(err, "policy")
		}
		payment, err := s.store.LockPayment(txCtx, found.ID)
		if err != nil {
			return notFoundOr(err, "payment")
		}
		out.Payment = payment
		if payment.LastEventID == event.ID {
			out.Duplicate = true
			return nil
		}

		at := now(txCtx)
		if !payment.ApplyGatewayOutcome(target, event.ID, event.ExternalReference, at) {
			return nil
		}
		if err := s.store.UpdatePayment(txCtx, payment); err != nil {
			return storeErr(err, "failed to update payment")
		}
		out.Applied = true

		perf := models.Performer{Type: models.PerformerGateway, ID: event.ID}
		action, description := models.ActionPaymentCompleted, "Payment completed"
		if target == models.PaymentFailed {
			action, description = models.ActionPaymentFailed, "Payment failed"
		}
		if err := s.appendActivity(txCtx, policy.ID, action, description,
			map[string]any{
				"payment_id": payment.ID.String(),
				"event_id":   event.ID,
				"event_type": kind,
				"amount":     payment.Amount.StringFixed(2),
			}, perf); err != nil {
			return err
		}
		if target != models.PaymentCompleted {
			return nil
		}
		notice, err = s.latchFullyPaid(txCtx, policy, perf)
		return err
	})
	if err != nil {
		if claimed {
			if ferr := s.dedupe.Forget(ctx, key); ferr != nil {
				s.logger.WarnContext(ctx, "failed to release event dedupe key", "event_id", event.ID, "error", ferr)
			}
		}
		s.metrics.IncrementGatewayEvent(kind, "error")
		return nil, err
	}

	switch {
	case out.Duplicate:
		s.metrics.IncrementGatewayEvent(kind, "duplicate")
	case out.Applied:
		s.metrics.IncrementGatewayEvent(kind, "applied")
		s.logAudit(ctx, "gateway_event_applied",
			"policy_id", out.Payment.PolicyID.String(),
			"payment_id", out.Payment.ID.String(),
			"event_id", event.ID,
			"status", string(out.Payment.Status),
		)
	default:
		s.metrics.IncrementGatewayEvent(kind, "ignored")
	}
	if notice != nil {
		out.BecameFullyPaid = true
		s.notifyFullyPaid(ctx, notice, models.Performer{Type: models.PerformerGateway, ID: event.ID})
	}
	return out, nil
}

// RecordManualPayment settles an open or failed payment outside the gateway.
func (s *Service) RecordManualPayment(ctx context.Context, p access.Principal, paymentID id.PaymentID, req *models.ManualPaymentRequest) (out *models.Payment, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.RecordManualPayment", attribute.String("payment_id", paymentID.String()))
	defer func() { s.finish(span, "RecordManualPayment", start, err) }()

	if err := p.Require(access.CapSettlePayment); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var notice *notification.PaymentsCompleted
	perf := performerFor(ctx, p)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, payment, err := s.lockPayment(txCtx, p, paymentID)
		if err != nil {
			return err
		}
		if err := payment.CanMarkPaidManually(); err != nil {
			return err
		}
		payment.ApplyManualPayment(req.Method, req.Reference, now(txCtx))
		if err := s.store.UpdatePayment(txCtx, payment); err != nil {
			return storeErr(err, "failed to update payment")
		}
		out = payment
		if err := s.appendActivity(txCtx, policy.ID, models.ActionPaymentCompleted, "Payment recorded manually",
			map[string]any{
				"payment_id": payment.ID.String(),
				"method":     string(req.Method),
				"reference":  req.Reference,
				"amount":     payment.Amount.StringFixed(2),
				"manual":     true,
			}, perf); err != nil {
			return err
		}
		notice, err = s.latchFullyPaid(txCtx, policy, perf)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "payment_recorded_manually",
		"policy_id", out.PolicyID.String(),
		"payment_id", out.ID.String(),
		"user_id", auditUser(p),
	)
	if notice != nil {
		s.notifyFullyPaid(ctx, notice, perf)
	}
	return out, nil
}

// RefundPayment moves a completed payment to REFUNDED.
func (s *Service) RefundPayment(ctx context.Context, p access.Principal, paymentID id.PaymentID, req *models.RefundRequest) (out *models.Payment, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "policy.RefundPayment", attribute.String("payment_id", paymentID.String()))
	defer func() { s.finish(span, "RefundPayment", start, err) }()

	if err := p.Require(access.CapSettlePayment); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		policy, payment, err := s.lockPayment(txCtx, p, paymentID)
		if err != nil {
			return err
		}
		if err := payment.CanRefund(); err != nil {
			return err
		}
		payment.ApplyRefund(req.Reason, now(txCtx))
		if err := s.store.UpdatePayment(txCtx, payment); err != nil {
			return storeErr(err, "failed to update payment")
		}
		out = payment
		return s.appendActivity(txCtx, policy.ID, models.ActionPaymentRefunded, "Payment refunded",
			map[string]any{
				"payment_id": payment.ID.String(),
				"reason":     req.Reason,
				"amount":     payment.Amount.StringFixed(2),
			}, performerFor(txCtx, p))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(models.ActionPaymentRefunded),
		"policy_id", out.PolicyID.String(),
		"payment_id", out.ID.String(),
		"user_id", auditUser(p),
	)
	return out, nil
}

// IsFullyPaid is true iff the policy has at least one payment and all of them
// are completed.
func (s *Service) IsFullyPaid(ctx context.Context, p access.Principal, policyID id.PolicyID) (bool, error) {
	payments, err := s.ListPayments(ctx, p, policyID)
	if err != nil {
		return false, err
	}
	return models.FullyPaid(payments), nil
}

func (s *Service) ListPayments(ctx context.Context, p access.Principal, policyID id.PolicyID) ([]*models.Payment, error) {
	if _, err := s.GetPolicy(ctx, p, policyID); err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, policyID)
	if err != nil {
		return nil, storeErr(err, "failed to load payments")
	}
	return payments, nil
}

// lockPayment locks the payment's policy, then the payment.
func (s *Service) lockPayment(txCtx context.Context, p access.Principal, paymentID id.PaymentID) (*models.Policy, *models.Payment, error) {
	found, err := s.store.GetPayment(txCtx, paymentID)
	if err != nil {
		return nil, nil, notFoundOr(err, "payment")
	}
	policy, err := s.lockPolicy(txCtx, p, found.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	payment, err := s.store.LockPayment(txCtx, paymentID)
	if err != nil {
		return nil, nil, notFoundOr(err, "payment")
	}
	return policy, payment, nil
}

// latchFullyPaid stamps PaymentsCompletedAt the first time the policy becomes
// fully paid and returns the notice to send after commit. Later flips return
// nil.
func (s *Service) latchFullyPaid(txCtx context.Context, policy *models.Policy, perf models.Performer) (*notification.PaymentsCompleted, error) {
	if policy.PaymentsCompletedAt != nil {
		return nil, nil
	}
	payments, err := s.store.ListPayments(txCtx, policy.ID)
	if err != nil {
		return nil, storeErr(err, "failed to load payments")
	}
	if !models.FullyPaid(payments) {
		return nil, nil
	}

	at := now(txCtx)
	total := decimal.Zero
	for _, pay := range payments {
		total = total.Add(pay.Amount)
	}
	policy.PaymentsCompletedAt = &at
	policy.Touch(at)
	if err := s.store.UpdatePolicy(txCtx, policy); err != nil {
		return nil, storeErr(err, "failed to update policy")
	}
	if err := s.appendActivity(txCtx, policy.ID, models.ActionAllPaymentsCompleted, "All payments completed",
		map[string]any{"payments": len(payments), "total": total.StringFixed(2)}, perf); err != nil {
		return nil, err
	}
	return &notification.PaymentsCompleted{
		PolicyID:     policy.ID,
		PolicyNumber: policy.Number,
		Total:        total,
		Payments:     len(payments),
		CompletedAt:  at,
	}, nil
}

func (s *Service) notifyFullyPaid(ctx context.Context, notice *notification.PaymentsCompleted, perf models.Performer) {
	s.metrics.IncrementFullyPaid()
	if err := s.notifier.NotifyAllPaymentsCompleted(ctx, *notice); err != nil {
		s.logger.WarnContext(ctx, "payments completed notification failed",
			"policy_id", notice.PolicyID.String(),
			"error", err,
		)
		s.recordAfterCommit(ctx, notice.PolicyID, models.ActionPaymentsCompletedFailed,
			"All payments completed notification could not be delivered",
			map[string]any{"error": err.Error()}, perf)
	}
}
