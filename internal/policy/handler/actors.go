package handler

import (
	"net/http"
	"strings"

	"leasecover/internal/policy/models"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
	"leasecover/pkg/platform/httputil"
	"leasecover/pkg/requestcontext"
)

// HandleResolveToken handles POST /access/resolve. It is the actor portal's
// entry point: the invitation token is exchanged for the actor's record and
// progress.
func (h *Handler) HandleResolveToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ResolveTokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	details, err := h.service.ResolveActorToken(ctx, req.Token)
	if err != nil {
		h.fail(ctx, w, "resolve_token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleAddActor handles POST /policies/{policyID}/actors.
func (h *Handler) HandleAddActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", id.ParsePolicyID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AddActorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actor, err := h.service.AddActor(ctx, p, policyID, req)
	if err != nil {
		h.fail(ctx, w, "add_actor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, actor)
}

// HandleGetActor handles GET /actors/{actorID}.
func (h *Handler) HandleGetActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}

	details, err := h.service.GetActor(ctx, p, actorID)
	if err != nil {
		h.fail(ctx, w, "get_actor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleUpdateActor handles PATCH /actors/{actorID}.
func (h *Handler) HandleUpdateActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateActorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actor, err := h.service.UpdateActor(ctx, p, actorID, req)
	if err != nil {
		h.fail(ctx, w, "update_actor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actor)
}

// HandleSubmitActor handles POST /actors/{actorID}/submit.
func (h *Handler) HandleSubmitActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}

	actor, err := h.service.SubmitActor(ctx, p, actorID)
	if err != nil {
		h.fail(ctx, w, "submit_actor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actor)
}

// HandleVerifyActor handles POST /actors/{actorID}/verification.
func (h *Handler) HandleVerifyActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.VerifyActorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actor, err := h.service.VerifyActor(ctx, p, actorID, req)
	if err != nil {
		h.fail(ctx, w, "verify_actor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actor)
}

// HandleSetPrimary handles POST /actors/{actorID}/primary.
func (h *Handler) HandleSetPrimary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}

	actor, err := h.service.SetPrimaryLandlord(ctx, p, actorID)
	if err != nil {
		h.fail(ctx, w, "set_primary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actor)
}

// HandleReplaceActor handles POST /actors/{actorID}/replace.
func (h *Handler) HandleReplaceActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ReplaceActorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actor, err := h.service.ReplaceActor(ctx, p, actorID, req)
	if err != nil {
		h.fail(ctx, w, "replace_actor", err)
		return
	}
	h.logger.InfoContext(ctx, "actor replaced",
		"request_id", requestcontext.RequestID(ctx),
		"replaced_actor_id", actorID,
		"actor_id", actor.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, actor)
}

// HandleAddReference handles POST /actors/{actorID}/references.
func (h *Handler) HandleAddReference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AddReferenceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	ref, err := h.service.AddReference(ctx, p, actorID, req)
	if err != nil {
		h.fail(ctx, w, "add_reference", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ref)
}

// HandleUploadDocument handles multipart POST /actors/{actorID}/documents
// with parts "file", "category" and optionally "document_type".
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	category := models.DocumentCategory(strings.ToUpper(upload.field("category")))
	if category == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "category is required"))
		return
	}

	doc, err := h.service.UploadDocument(ctx, p, actorID, category, upload.field("document_type"), upload.file)
	if err != nil {
		h.fail(ctx, w, "upload_document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

// HandleDeleteDocument handles DELETE /documents/{documentID}.
func (h *Handler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	documentID, ok := pathID(w, r, "documentID", id.ParseDocumentID)
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(ctx, p, documentID); err != nil {
		h.fail(ctx, w, "delete_document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListReferences handles GET /actors/{actorID}/references.
func (h *Handler) HandleListReferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}

	refs, err := h.service.ListReferences(ctx, p, actorID)
	if err != nil {
		h.fail(ctx, w, "list_references", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReferenceListResponse{References: nonNil(refs)})
}

func (h *Handler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	actorID, ok := pathID(w, r, "actorID", id.ParseActorID)
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(ctx, p, actorID)
	if err != nil {
		h.fail(ctx, w, "list_documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DocumentListResponse{Documents: nonNil(docs)})
}
