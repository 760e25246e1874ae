package keymaster

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/keymaster/internal/httpserver"
)

// Handler wires the validation Engine and management Service to HTTP. It
// holds no state of its own beyond its two collaborators.
type Handler struct {
	engine  *Engine
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a Handler. engine serves the hot validate path; service
// serves project/key management mutations.
func NewHandler(engine *Engine, service *Service, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, service: service, logger: logger}
}

// Mount registers every domain route on r. Per spec.md §6, every route
// except /health and /v1/validate-key requires the admin bearer token;
// gate is applied per-route via r.With rather than scoped to a path prefix,
// since gated and ungated routes interleave under /v1/.
func (h *Handler) Mount(r chi.Router, gate func(http.Handler) http.Handler) {
	r.Post("/v1/validate-key", h.handleValidateKey)

	admin := r.With(gate)
	admin.Post("/v1/mint-key", h.handleMintKey)
	admin.Post("/v1/revoke-key", h.handleRevokeKey)
	admin.Get("/v1/list-keys", h.handleListKeys)
	admin.Post("/v1/admin/create-project", h.handleCreateProject)
	admin.Get("/v1/admin/project/{project_id}", h.handleGetProject)
}

func (h *Handler) respondError(w http.ResponseWriter, err *Error) {
	if err.Kind == ErrInternalError || err.Kind == ErrStorageError {
		h.logger.Error("request failed", "kind", err.Kind, "cause", err.Cause)
	}
	httpserver.RespondError(w, err.Kind.HTTPStatus(), string(err.Kind), err.Message)
}

type validateKeyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type validateKeyResponse struct {
	ProjectID string `json:"project_id"`
	KeyID     string `json:"key_id"`
	Owner     string `json:"owner"`
	Metadata  string `json:"metadata"`
}

func (h *Handler) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	var req validateKeyRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	doc, err := h.engine.Validate(r.Context(), req.APIKey)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, validateKeyResponse{
		ProjectID: doc.ProjectID,
		KeyID:     doc.KeyID,
		Owner:     doc.Owner,
		Metadata:  doc.Metadata,
	})
}

type mintKeyRequest struct {
	ProjectID string   `json:"project_id" validate:"required"`
	Owner     string   `json:"owner" validate:"required"`
	Metadata  string   `json:"metadata"`
	ExpiresAt *float64 `json:"expires_at"`
}

type mintKeyResponse struct {
	APIKey string `json:"api_key"`
}

func (h *Handler) handleMintKey(w http.ResponseWriter, r *http.Request) {
	var req mintKeyRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	apiKey, err := h.service.MintKey(r.Context(), req.ProjectID, req.Owner, req.Metadata, req.ExpiresAt)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, mintKeyResponse{APIKey: apiKey})
}

type revokeKeyRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	KeyID     string `json:"key_id" validate:"required"`
}

type revokeKeyResponse struct {
	Revoked bool `json:"revoked"`
}

func (h *Handler) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	var req revokeKeyRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.RevokeKey(r.Context(), req.ProjectID, req.KeyID); err != nil {
		h.respondError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, revokeKeyResponse{Revoked: true})
}

type listKeysResponse struct {
	Items []KeyMetadata `json:"items"`
	Next  *string       `json:"next"`
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "project_id is required")
		return
	}

	params, err := httpserver.ParseListParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	items, next, kmErr := h.service.ListKeys(r.Context(), projectID, params.Offset, params.Limit)
	if kmErr != nil {
		h.respondError(w, kmErr)
		return
	}

	httpserver.Respond(w, http.StatusOK, listKeysResponse{Items: items, Next: next})
}

type createProjectResponse struct {
	ProjectID string `json:"project_id"`
	Created   bool   `json:"created"`
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, label, owner := q.Get("project_id"), q.Get("label"), q.Get("owner")
	if projectID == "" || owner == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "project_id and owner are required")
		return
	}

	if _, err := h.service.CreateProject(r.Context(), projectID, label, owner); err != nil {
		h.respondError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, createProjectResponse{ProjectID: projectID, Created: true})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")

	doc, err := h.service.GetProject(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, doc)
}
