// Package service implements the policy lifecycle: the state machine, actor
// collection, investigation, payments and contract versioning.
//
// Every mutation runs in one StoreTx unit of work. It locks the policy row
// first, re-checks authorization and state against the loaded rows, writes
// and appends its activity entries before commit. Notifications are sent only
// after commit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leasecover/internal/access"
	"leasecover/internal/filestore"
	"leasecover/internal/gateway"
	jwttoken "leasecover/internal/jwt_token"
	"leasecover/internal/notification"
	"leasecover/internal/policy/metrics"
	"leasecover/internal/policy/models"
	"leasecover/pkg/attrs"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/sentinel"
	"leasecover/pkg/requestcontext"
)

// TokenIssuer mints actor access tokens for invitations.
type TokenIssuer interface {
	IssueActorToken(actorID id.ActorID, policyID id.PolicyID, expiresIn time.Duration) (jwttoken.IssuedToken, error)
}

// PrincipalResolver validates a raw bearer token.
type PrincipalResolver interface {
	ValidatePrincipal(token string) (access.Principal, error)
}

// EventDeduper filters exact webhook redeliveries before the database sees
// them. It is an optimization; the transaction stays authoritative.
type EventDeduper interface {
	FirstDelivery(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

const (
	defaultInvitationTTL   = 7 * 24 * time.Hour
	invitationConcurrency  = 4
	policyNumberAttempts   = 3
	defaultCurrency        = "MXN"
	storagePrefixPolicies  = "policies"
	contractStorageSegment = "contracts"
)

// Service orchestrates the policy lifecycle.
type Service struct {
	store    Store
	tx       StoreTx
	storage  filestore.Storage
	notifier notification.Notifier
	gateway  gateway.SessionCreator
	tokens   TokenIssuer
	resolver PrincipalResolver
	dedupe   EventDeduper

	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	invitationTTL time.Duration
	expiryBatch   int
	currency      string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithStorage(storage filestore.Storage) Option {
	return func(s *Service) {
		s.storage = storage
	}
}

func WithNotifier(n notification.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithGateway(g gateway.SessionCreator) Option {
	return func(s *Service) {
		s.gateway = g
	}
}

// WithTokens wires actor token issuance and resolution.
func WithTokens(issuer TokenIssuer, resolver PrincipalResolver) Option {
	return func(s *Service) {
		s.tokens = issuer
		s.resolver = resolver
	}
}

func WithEventDeduper(d EventDeduper) Option {
	return func(s *Service) {
		s.dedupe = d
	}
}

func WithInvitationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.invitationTTL = ttl
		}
	}
}

// WithExpiryBatch caps how many due policies one sweep expires.
func WithExpiryBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.expiryBatch = n
		}
	}
}

// New constructs a Service. Collaborators left unset fall back to in-process
// implementations so the service is usable in tests and local runs.
func New(store Store, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tx:            tx,
		invitationTTL: defaultInvitationTTL,
		expiryBatch:   defaultExpiryBatch,
		currency:      defaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("leasecover/policy")
	}
	if s.storage == nil {
		s.storage = filestore.NewMemory()
	}
	if s.notifier == nil {
		s.notifier = notification.NewLogNotifier(s.logger)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

// finish ends span, records err on it and observes the operation latency.
func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
	s.metrics.ObserveOperation(op, time.Since(start))
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)

	if spanAttrs := attrs.SpanAttributes(attributes, "policy_id", "actor_id", "payment_id"); len(spanAttrs) > 0 {
		trace.SpanFromContext(ctx).AddEvent(event, trace.WithAttributes(spanAttrs...))
	}
}

func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC()
}

// performerFor resolves the author recorded on activity entries.
func performerFor(ctx context.Context, p access.Principal) models.Performer {
	perf := models.Performer{
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	switch {
	case p.IsActor():
		perf.Type = models.PerformerActor
		perf.ID = p.ActorID.String()
	case p.UserID.IsNil():
		perf.Type = models.PerformerSystem
		perf.ID = models.SystemPerformer.ID
	default:
		perf.Type = models.PerformerStaff
		perf.ID = p.UserID.String()
	}
	return perf
}

// appendActivity writes one activity entry inside the caller's unit of work.
func (s *Service) appendActivity(txCtx context.Context, policyID id.PolicyID, action models.Action, description string, details map[string]any, perf models.Performer) error {
	entry := models.NewActivity(policyID, action, description, details, perf, now(txCtx))
	if err := s.store.AppendActivity(txCtx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record activity")
	}
	return nil
}

// recordAfterCommit appends an activity in its own unit of work. Used for
// outcomes of post-commit side effects, which must never fail the caller.
func (s *Service) recordAfterCommit(ctx context.Context, policyID id.PolicyID, action models.Action, description string, details map[string]any, perf models.Performer) {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.appendActivity(txCtx, policyID, action, description, details, perf)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record post-commit activity",
			"policy_id", policyID.String(),
			"action", string(action),
			"error", err,
		)
	}
}

// loadPolicy reads a policy without locking and checks scope.
func (s *Service) loadPolicy(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := s.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, notFoundOr(err, "policy")
	}
	if err := p.OwnsPolicy(policy.ID, policy.CreatedBy); err != nil {
		return nil, err
	}
	return policy, nil
}

// lockPolicy locks the policy row for the unit of work and checks scope.
func (s *Service) lockPolicy(txCtx context.Context, p access.Principal, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := s.store.LockPolicy(txCtx, policyID)
	if err != nil {
		return nil, notFoundOr(err, "policy")
	}
	if err := p.OwnsPolicy(policy.ID, policy.CreatedBy); err != nil {
		return nil, err
	}
	return policy, nil
}

// lockActor locks the actor's policy, then re-reads the actor under that
// lock so the returned row is current.
func (s *Service) lockActor(txCtx context.Context, p access.Principal, actorID id.ActorID) (*models.Policy, *models.Actor, error) {
	actor, err := s.store.GetActor(txCtx, actorID)
	if err != nil {
		return nil, nil, notFoundOr(err, "actor")
	}
	policy, err := s.lockPolicy(txCtx, p, actor.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	actor, err = s.store.GetActor(txCtx, actorID)
	if err != nil {
		return nil, nil, notFoundOr(err, "actor")
	}
	return policy, actor, nil
}

func requireMutable(policy *models.Policy) error {
	if policy.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeStateConflict, "policy is %s", policy.Status)
	}
	return nil
}

// notFoundOr maps sentinel.ErrNotFound to a NotFound naming what, passes
// coded errors through and wraps everything else as internal.
func notFoundOr(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "%s not found", what)
	}
	return storeErr(err, "failed to load "+what)
}

func storeErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// validationFromInvariant turns a constructor's invariant violation into a
// validation error when the caller supplied the offending data.
func validationFromInvariant(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func auditUser(p access.Principal) string {
	if p.IsActor() {
		return "actor:" + p.ActorID.String()
	}
	return p.UserID.String()
}
