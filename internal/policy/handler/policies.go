package handler

import (
	"net/http"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/requestcontext"
)

// HandleCreatePolicy handles POST /policies.
func (h *Handler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreatePolicyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	policy, err := h.service.CreatePolicy(ctx, p, req)
	if err != nil {
		h.fail(ctx, w, "create_policy", err)
		return
	}
	h.logger.InfoContext(ctx, "policy created",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policy.ID,
		"policy_number", policy.Number,
	)
	httputil.WriteJSON(w, http.StatusCreated, policy)
}

// HandleListPolicies handles GET /policies.
func (h *Handler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	filter, err := parsePolicyFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	policies, err := h.service.ListPolicies(ctx, p, filter)
	if err != nil {
		h.fail(ctx, w, "list_policies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PolicyListResponse{Policies: nonNil(policies), Count: len(policies)})
}

// HandleGetPolicy handles GET /policies/{policyID}.
func (h *Handler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}

	details, err := h.service.GetPolicyDetails(ctx, p, policyID)
	if err != nil {
		h.fail(ctx, w, "get_policy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleTransition handles POST /policies/{policyID}/transitions.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.TransitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	policy, err := h.service.Transition(ctx, p, policyID, req)
	if err != nil {
		h.fail(ctx, w, "transition", err)
		return
	}
	h.logger.InfoContext(ctx, "policy transitioned",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policy.ID,
		"status", policy.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, policy)
}

// HandleSendInvitations handles POST /policies/{policyID}/invitations. An
// empty body invites every actor that has not completed its record.
func (h *Handler) HandleSendInvitations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SendInvitationsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.service.SendInvitations(ctx, p, policyID, req)
	if err != nil {
		h.fail(ctx, w, "send_invitations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleListActivities handles GET /policies/{policyID}/activities.
func (h *Handler) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}

	activities, err := h.service.ListActivities(ctx, p, policyID)
	if err != nil {
		h.fail(ctx, w, "list_activities", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActivityListResponse{Activities: nonNil(activities)})
}

// HandleStartInvestigation handles POST /policies/{policyID}/investigation.
func (h *Handler) HandleStartInvestigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}

	inv, err := h.service.StartInvestigation(ctx, p, policyID)
	if err != nil {
		h.fail(ctx, w, "start_investigation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

// HandleGetInvestigation handles GET /policies/{policyID}/investigation.
func (h *Handler) HandleGetInvestigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}

	inv, err := h.service.GetInvestigation(ctx, p, policyID)
	if err != nil {
		h.fail(ctx, w, "get_investigation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

// HandleCompleteInvestigation handles POST /policies/{policyID}/investigation/complete.
func (h *Handler) HandleCompleteInvestigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CompleteInvestigationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	inv, err := h.service.CompleteInvestigation(ctx, p, policyID, req)
	if err != nil {
		h.fail(ctx, w, "complete_investigation", err)
		return
	}
	h.logger.InfoContext(ctx, "investigation completed",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policyID,
		"verdict", req.Verdict,
	)
	httputil.WriteJSON(w, http.StatusOK, inv)
}

// HandleLandlordDecision handles POST /policies/{policyID}/investigation/decision.
func (h *Handler) HandleLandlordDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.LandlordDecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	inv, err := h.service.RecordLandlordDecision(ctx, p, policyID, req)
	if err != nil {
		h.fail(ctx, w, "landlord_decision", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

// HandleUploadContract handles multipart POST /policies/{policyID}/contracts.
func (h *Handler) HandleUploadContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	contract, err := h.service.UploadContract(ctx, p, policyID, upload.file, upload.field("notes"))
	if err != nil {
		h.fail(ctx, w, "upload_contract", err)
		return
	}
	h.logger.InfoContext(ctx, "contract uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policyID,
		"version", contract.Version,
	)
	httputil.WriteJSON(w, http.StatusCreated, contract)
}

// HandleListContracts handles GET /policies/{policyID}/contracts.
func (h *Handler) HandleListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}

	contracts, err := h.service.ListContracts(ctx, p, policyID)
	if err != nil {
		h.fail(ctx, w, "list_contracts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ContractListResponse{Contracts: nonNil(contracts)})
}
