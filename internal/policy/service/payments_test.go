package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// memoryDeduper stands in for the Redis SETNX deduper.
type memoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	fail    error
	forgets int
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]bool)}
}

func (d *memoryDeduper) FirstDelivery(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return false, d.fail
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memoryDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	d.forgets++
	return nil
}

func gatewayEvent(eventID string, kind models.GatewayEventKind, sessionID string) *models.GatewayEvent {
	return &models.GatewayEvent{ID: eventID, Kind: kind, SessionID: sessionID, OccurredAt: time.Now()}
}

// =============================================================================
// Payment Creation
// =============================================================================

func (s *ServiceSuite) TestCreatePayment_CardOpensCheckoutSession() {
	policy := s.createPolicy(models.GuarantorNone)

	pay := s.createCardPayment(policy.ID, "4500")

	s.Equal(models.PaymentPending, pay.Status)
	s.Equal("720.00", pay.TaxAmount.StringFixed(2))
	s.Equal("5220.00", pay.Amount.StringFixed(2))
	s.NotEmpty(pay.GatewaySessionID)
	s.Contains(pay.CheckoutURL, pay.GatewaySessionID)

	session, ok := s.gateway.Lookup(pay.GatewaySessionID)
	s.Require().True(ok)
	s.True(session.Amount.Equal(pay.Amount))
	s.Equal(pay.ID, session.PaymentID)
	s.Len(s.activities(policy.ID, models.ActionPaymentCreated), 1)
}

func (s *ServiceSuite) TestCreatePayment_CustomTaxRateAndOfflineMethod() {
	policy := s.createPolicy(models.GuarantorNone)
	zero := decimal.Zero

	pay, err := s.service.CreatePayment(s.ctx, s.broker, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString("1000"),
		TaxRate:   &zero,
		Method:    models.MethodTransfer,
	})
	s.Require().NoError(err)
	s.Equal("1000.00", pay.Amount.StringFixed(2))
	s.Empty(pay.GatewaySessionID, "offline payments get no checkout session")
}

func (s *ServiceSuite) TestCreatePayment_GatewayFailureLeavesNoPayment() {
	policy := s.createPolicy(models.GuarantorNone)
	s.gateway.Fail(errors.New("gateway unavailable"))

	_, err := s.service.CreatePayment(s.ctx, s.broker, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString("4500"),
		Method:    models.MethodCard,
	})
	s.requireCode(err, dErrors.CodeExternalService)

	payments, err := s.service.ListPayments(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.Empty(payments)
	s.Empty(s.activities(policy.ID, models.ActionPaymentCreated))
}

func (s *ServiceSuite) TestCreatePayment_Validation() {
	policy := s.createPolicy(models.GuarantorNone)

	_, err := s.service.CreatePayment(s.ctx, s.broker, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.Zero,
	})
	s.requireCode(err, dErrors.CodeValidation)

	rate := decimal.RequireFromString("1.5")
	_, err = s.service.CreatePayment(s.ctx, s.broker, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString("100"),
		TaxRate:   &rate,
	})
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestCreatePayment_NotOnActivePolicy() {
	policy := s.activePolicy()

	_, err := s.service.CreatePayment(s.ctx, s.staff, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString("100"),
		Method:    models.MethodCash,
	})
	s.requireCode(err, dErrors.CodeStateConflict)
}

// =============================================================================
// Gateway Events
// =============================================================================

func (s *ServiceSuite) TestGatewayEvent_FullyPaidLatchFiresOnce() {
	policy := s.createPolicy(models.GuarantorNone)
	first := s.createCardPayment(policy.ID, "4500")
	second := s.createCardPayment(policy.ID, "1500")

	res := s.completeSession(first.GatewaySessionID, "evt_1")
	s.True(res.Applied)
	s.False(res.BecameFullyPaid)
	s.Equal(models.PaymentCompleted, res.Payment.Status)
	s.NotNil(res.Payment.PaidAt)

	replay := s.completeSession(first.GatewaySessionID, "evt_1")
	s.True(replay.Duplicate)
	s.False(replay.Applied)

	res = s.completeSession(second.GatewaySessionID, "evt_2")
	s.True(res.Applied)
	s.True(res.BecameFullyPaid)

	late := s.completeSession(second.GatewaySessionID, "evt_3")
	s.False(late.Applied, "completed payments absorb later events")
	s.False(late.BecameFullyPaid)

	s.Len(s.notifier.Completions(), 1)
	s.Len(s.activities(policy.ID, models.ActionAllPaymentsCompleted), 1)
	s.Len(s.activities(policy.ID, models.ActionPaymentCompleted), 2)
	s.NotNil(s.policy(policy.ID).PaymentsCompletedAt)

	paid, err := s.service.IsFullyPaid(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.True(paid)
}

func (s *ServiceSuite) TestGatewayEvent_ConcurrentRedeliveries() {
	policy := s.createPolicy(models.GuarantorNone)
	pay := s.createCardPayment(policy.ID, "4500")
	const deliveries = 10

	var wg sync.WaitGroup
	results := make([]*models.GatewayEventResult, deliveries)
	for i := range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.service.RecordGatewayEvent(s.ctx, gatewayEvent("evt_same", models.EventSessionCompleted, pay.GatewaySessionID))
			s.NoError(err)
			results[i] = res
		}()
	}
	wg.Wait()

	applied, latched := 0, 0
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Applied {
			applied++
		}
		if res.BecameFullyPaid {
			latched++
		}
	}
	s.Equal(1, applied)
	s.Equal(1, latched)
	s.Len(s.notifier.Completions(), 1)
}

func (s *ServiceSuite) TestGatewayEvent_FailureThenSuccess() {
	policy := s.createPolicy(models.GuarantorNone)
	pay := s.createCardPayment(policy.ID, "4500")

	res, err := s.service.RecordGatewayEvent(s.ctx, gatewayEvent("evt_fail", models.EventPaymentFailed, pay.GatewaySessionID))
	s.Require().NoError(err)
	s.True(res.Applied)
	s.Equal(models.PaymentFailed, res.Payment.Status)
	s.NotNil(res.Payment.FailedAt)
	s.Len(s.activities(policy.ID, models.ActionPaymentFailed), 1)

	res = s.completeSession(pay.GatewaySessionID, "evt_ok")
	s.True(res.Applied)
	s.Equal(models.PaymentCompleted, res.Payment.Status)
	s.Nil(res.Payment.FailedAt)
	s.True(res.BecameFullyPaid)
}

func (s *ServiceSuite) TestGatewayEvent_ExpiryAfterCompletion() {
	policy := s.createPolicy(models.GuarantorNone)
	pay := s.createCardPayment(policy.ID, "4500")
	s.completeSession(pay.GatewaySessionID, "evt_ok")

	res, err := s.service.RecordGatewayEvent(s.ctx, gatewayEvent("evt_late", models.EventSessionExpired, pay.GatewaySessionID))
	s.Require().NoError(err)
	s.False(res.Applied)
	s.False(res.Duplicate)
	s.False(res.BecameFullyPaid)
	s.Equal(models.PaymentCompleted, res.Payment.Status)
	s.Empty(s.activities(policy.ID, models.ActionPaymentFailed))
	s.Len(s.activities(policy.ID, models.ActionPaymentCompleted), 1)

	stored, err := s.store.GetPaymentBySession(s.ctx, pay.GatewaySessionID)
	s.Require().NoError(err)
	s.Equal(models.PaymentCompleted, stored.Status)
	s.Equal("evt_ok", stored.LastEventID)
}

func (s *ServiceSuite) TestGatewayEvent_Errors() {
	s.Run("unknown session", func() {
		_, err := s.service.RecordGatewayEvent(s.ctx, gatewayEvent("evt_x", models.EventSessionCompleted, "cs_missing"))
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("unknown kind", func() {
		_, err := s.service.RecordGatewayEvent(s.ctx, gatewayEvent("evt_y", "invoice.created", "cs_missing"))
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("nil event", func() {
		_, err := s.service.RecordGatewayEvent(s.ctx, nil)
		s.requireCode(err, dErrors.CodeBadRequest)
	})
}

func (s *ServiceSuite) TestGatewayEvent_Deduper() {
	dedupe := newMemoryDeduper()
	s.service = s.newService(WithEventDeduper(dedupe))
	policy := s.createPolicy(models.GuarantorNone)
	pay := s.createCardPayment(policy.ID, "4500")

	s.Run("redelivery is dropped before the store", func() {
		s.True(s.completeSession(pay.GatewaySessionID, "evt_a").Applied)
		replay := s.completeSession(pay.GatewaySessionID, "evt_a")
		s.True(replay.Duplicate)
		s.Nil(replay.Payment, "the store was never consulted")
	})

	s.Run("failed unit of work releases the key", func() {
		_, err := s.service.RecordGatewayEvent(s.ctx, gatewayEvent("evt_b", models.EventSessionCompleted, "cs_missing"))
		s.requireCode(err, dErrors.CodeNotFound)
		s.Equal(1, dedupe.forgets)
		s.False(dedupe.seen["gateway-event:evt_b"])
	})

	s.Run("deduper outage falls back to the database", func() {
		other := s.createCardPayment(policy.ID, "100")
		dedupe.fail = errors.New("redis down")
		s.True(s.completeSession(other.GatewaySessionID, "evt_c").Applied)
		replay := s.completeSession(other.GatewaySessionID, "evt_c")
		s.True(replay.Duplicate)
		s.NotNil(replay.Payment)
	})
}

// =============================================================================
// Manual Settlement & Refunds
// =============================================================================

func (s *ServiceSuite) TestRecordManualPayment() {
	policy := s.createPolicy(models.GuarantorNone)
	pay, err := s.service.CreatePayment(s.ctx, s.broker, policy.ID, &models.CreatePaymentRequest{
		PayerType: models.PayerTenant,
		Subtotal:  decimal.RequireFromString("4500"),
		Method:    models.MethodTransfer,
	})
	s.Require().NoError(err)

	_, err = s.service.RecordManualPayment(s.ctx, s.broker, pay.ID, &models.ManualPaymentRequest{Method: models.MethodTransfer, Reference: "SPEI-1"})
	s.requireCode(err, dErrors.CodeForbidden)

	_, err = s.service.RecordManualPayment(s.ctx, s.staff, pay.ID, &models.ManualPaymentRequest{Method: models.MethodTransfer})
	s.requireCode(err, dErrors.CodeValidation)

	got, err := s.service.RecordManualPayment(s.ctx, s.staff, pay.ID, &models.ManualPaymentRequest{Method: models.MethodTransfer, Reference: "SPEI-1"})
	s.Require().NoError(err)
	s.Equal(models.PaymentCompleted, got.Status)
	s.Equal("SPEI-1", got.ExternalReference)
	s.Len(s.notifier.Completions(), 1)

	_, err = s.service.RecordManualPayment(s.ctx, s.staff, pay.ID, &models.ManualPaymentRequest{Method: models.MethodCash, Reference: "again"})
	s.requireCode(err, dErrors.CodeStateConflict)
}

func (s *ServiceSuite) TestRefundPayment() {
	policy := s.createPolicy(models.GuarantorNone)
	pay := s.createCardPayment(policy.ID, "4500")

	_, err := s.service.RefundPayment(s.ctx, s.staff, pay.ID, &models.RefundRequest{Reason: "duplicate charge"})
	s.requireCode(err, dErrors.CodeStateConflict)

	s.completeSession(pay.GatewaySessionID, "evt_paid")
	got, err := s.service.RefundPayment(s.ctx, s.staff, pay.ID, &models.RefundRequest{Reason: "duplicate charge"})
	s.Require().NoError(err)
	s.Equal(models.PaymentRefunded, got.Status)
	s.Equal("duplicate charge", got.RefundReason)

	late := s.completeSession(pay.GatewaySessionID, "evt_late")
	s.False(late.Applied, "refunds are not undone by gateway events")

	paid, err := s.service.IsFullyPaid(s.ctx, s.staff, policy.ID)
	s.Require().NoError(err)
	s.False(paid)
	s.Len(s.activities(policy.ID, models.ActionPaymentRefunded), 1)
}

func (s *ServiceSuite) TestPaymentNotFound() {
	_, err := s.service.RefundPayment(s.ctx, s.staff, id.NewPaymentID(), &models.RefundRequest{Reason: "x"})
	s.requireCode(err, dErrors.CodeNotFound)
}
