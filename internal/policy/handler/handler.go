// Package handler exposes the policy lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leasecover/internal/access"
	"leasecover/internal/platform/middleware"
	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/policy-mocks.go -package=mocks Service

// Service is the policy lifecycle as seen by the HTTP layer.
type Service interface {
	CreatePolicy(ctx context.Context, p access.Principal, req *models.CreatePolicyRequest) (*models.Policy, error)
	ListPolicies(ctx context.Context, p access.Principal, filter models.PolicyFilter) ([]*models.Policy, error)
	GetPolicyDetails(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.PolicyDetails, error)
	Transition(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.TransitionRequest) (*models.Policy, error)
	SendInvitations(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.SendInvitationsRequest) (*models.InvitationResult, error)
	ListActivities(ctx context.Context, p access.Principal, policyID id.PolicyID) ([]*models.Activity, error)

	AddActor(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.AddActorRequest) (*models.Actor, error)
	GetActor(ctx context.Context, p access.Principal, actorID id.ActorID) (*models.ActorDetails, error)
	UpdateActor(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.UpdateActorRequest) (*models.Actor, error)
	SubmitActor(ctx context.Context, p access.Principal, actorID id.ActorID) (*models.Actor, error)
	VerifyActor(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.VerifyActorRequest) (*models.Actor, error)
	SetPrimaryLandlord(ctx context.Context, p access.Principal, actorID id.ActorID) (*models.Actor, error)
	ReplaceActor(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.ReplaceActorRequest) (*models.Actor, error)
	AddReference(ctx context.Context, p access.Principal, actorID id.ActorID, req *models.AddReferenceRequest) (*models.Reference, error)
	ListReferences(ctx context.Context, p access.Principal, actorID id.ActorID) ([]*models.Reference, error)
	ResolveActorToken(ctx context.Context, token string) (*models.ActorDetails, error)

	UploadDocument(ctx context.Context, p access.Principal, actorID id.ActorID, category models.DocumentCategory, documentType string, file *models.FileUpload) (*models.Document, error)
	DeleteDocument(ctx context.Context, p access.Principal, documentID id.DocumentID) error
	ListDocuments(ctx context.Context, p access.Principal, actorID id.ActorID) ([]*models.Document, error)

	StartInvestigation(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Investigation, error)
	CompleteInvestigation(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.CompleteInvestigationRequest) (*models.Investigation, error)
	RecordLandlordDecision(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.LandlordDecisionRequest) (*models.Investigation, error)
	GetInvestigation(ctx context.Context, p access.Principal, policyID id.PolicyID) (*models.Investigation, error)

	UploadContract(ctx context.Context, p access.Principal, policyID id.PolicyID, file *models.FileUpload, notes string) (*models.Contract, error)
	ListContracts(ctx context.Context, p access.Principal, policyID id.PolicyID) ([]*models.Contract, error)

	CreatePayment(ctx context.Context, p access.Principal, policyID id.PolicyID, req *models.CreatePaymentRequest) (*models.Payment, error)
	ListPayments(ctx context.Context, p access.Principal, policyID id.PolicyID) ([]*models.Payment, error)
	RecordManualPayment(ctx context.Context, p access.Principal, paymentID id.PaymentID, req *models.ManualPaymentRequest) (*models.Payment, error)
	RefundPayment(ctx context.Context, p access.Principal, paymentID id.PaymentID, req *models.RefundRequest) (*models.Payment, error)
	RecordGatewayEvent(ctx context.Context, event *models.GatewayEvent) (*models.GatewayEventResult, error)
}

// Handler wires the policy routes to the service.
type Handler struct {
	service       Service
	validator     middleware.PrincipalValidator
	logger        *slog.Logger
	webhookSecret []byte
	allowUnsigned bool
	maxUpload     int64
	publicLimit   func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithWebhookSecret enables HMAC verification of gateway webhooks.
func WithWebhookSecret(secret string) Option {
	return func(h *Handler) {
		h.webhookSecret = []byte(secret)
	}
}

// WithUnsignedWebhooks accepts gateway webhooks without a signature when no
// secret is configured. Local development only.
func WithUnsignedWebhooks(allow bool) Option {
	return func(h *Handler) {
		h.allowUnsigned = allow
	}
}

// WithPublicLimit wraps the token resolution route, the only public route a
// client can hammer to guess invitation tokens.
func WithPublicLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.publicLimit = mw
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// New constructs a policy handler.
func New(service Service, validator middleware.PrincipalValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		validator: validator,
		logger:    logger,
		maxUpload: models.MaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the policy routes. Token resolution and the gateway
// webhook are public; everything else requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	if h.publicLimit != nil {
		r.With(h.publicLimit).Post("/access/resolve", h.HandleResolveToken)
	} else {
		r.Post("/access/resolve", h.HandleResolveToken)
	}
	r.Post("/webhooks/payments", h.HandleGatewayWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Route("/policies", func(r chi.Router) {
			r.Post("/", h.HandleCreatePolicy)
			r.Get("/", h.HandleListPolicies)
			r.Route("/{policyID}", func(r chi.Router) {
				r.Get("/", h.HandleGetPolicy)
				r.Post("/transitions", h.HandleTransition)
				r.Post("/invitations", h.HandleSendInvitations)
				r.Post("/actors", h.HandleAddActor)
				r.Get("/investigation", h.HandleGetInvestigation)
				r.Post("/investigation", h.HandleStartInvestigation)
				r.Post("/investigation/complete", h.HandleCompleteInvestigation)
				r.Post("/investigation/decision", h.HandleLandlordDecision)
				r.Post("/contracts", h.HandleUploadContract)
				r.Get("/contracts", h.HandleListContracts)
				r.Post("/payments", h.HandleCreatePayment)
				r.Get("/payments", h.HandleListPayments)
				r.Get("/activities", h.HandleListActivities)
			})
		})

		r.Route("/actors/{actorID}", func(r chi.Router) {
			r.Get("/", h.HandleGetActor)
			r.Patch("/", h.HandleUpdateActor)
			r.Post("/submit", h.HandleSubmitActor)
			r.Post("/verification", h.HandleVerifyActor)
			r.Post("/primary", h.HandleSetPrimary)
			r.Post("/replace", h.HandleReplaceActor)
			r.Post("/references", h.HandleAddReference)
			r.Get("/references", h.HandleListReferences)
			r.Post("/documents", h.HandleUploadDocument)
			r.Get("/documents", h.HandleListDocuments)
		})

		r.Delete("/documents/{documentID}", h.HandleDeleteDocument)
		r.Post("/payments/{paymentID}/manual", h.HandleManualPayment)
		r.Post("/payments/{paymentID}/refund", h.HandleRefundPayment)
	})
}

// principal returns the authenticated caller, writing 401 when absent.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p, ok := access.FromContext(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "principal missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return access.Principal{}, false
	}
	return p, true
}

func pathID[T any](w http.ResponseWriter, r *http.Request, param string, parse func(string) (T, error)) (T, bool) {
	v, err := parse(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, err)
		var zero T
		return zero, false
	}
	return v, true
}

// fail logs a service error at a level matching its code and writes it.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err,
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeExternalService, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "policy request failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "policy request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
