package authz

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/platform/httpx"
)

// ResourceLoader resolves a resource ID into the engine's view of it.
// Archived resources are reported as not found.
type ResourceLoader interface {
	AuthzResource(ctx context.Context, id uuid.UUID) (Resource, error)
}

// Handler exposes override management and exploratory permission checks.
type Handler struct {
	logger    *slog.Logger
	overrides *OverrideService
	decider   *Service
	resources ResourceLoader
	validate  *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, overrides *OverrideService, decider *Service, resources ResourceLoader) *Handler {
	return &Handler{
		logger:    logger,
		overrides: overrides,
		decider:   decider,
		resources: resources,
		validate:  validator.New(),
	}
}

// MountRoutes registers the permission endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/grant", h.grant)
	r.Post("/revoke", h.revoke)
	r.Get("/check", h.check)
}

type grantRequest struct {
	UserID     string     `json:"user_id" validate:"required,uuid"`
	ResourceID string     `json:"resource_id" validate:"required,uuid"`
	Action     string     `json:"action" validate:"required"`
	Allowed    *bool      `json:"allowed"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor")
		return
	}

	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	action := Action(req.Action)
	if !action.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown action")
		return
	}
	targetID := uuid.MustParse(req.UserID)
	resourceID := uuid.MustParse(req.ResourceID)

	resource, err := h.resources.AuthzResource(r.Context(), resourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	allowed := true
	if req.Allowed != nil {
		allowed = *req.Allowed
	}
	if err := h.overrides.Grant(r.Context(), actor, targetID, resource, action, allowed, req.ExpiresAt); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true})
}

type revokeRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	ResourceID string `json:"resource_id" validate:"required,uuid"`
	Action     string `json:"action" validate:"required"`
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor")
		return
	}

	var req revokeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	action := Action(req.Action)
	if !action.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown action")
		return
	}

	resource, err := h.resources.AuthzResource(r.Context(), uuid.MustParse(req.ResourceID))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.overrides.Revoke(r.Context(), actor, uuid.MustParse(req.UserID), resource, action); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// check answers "could I do this" without recording an audit entry.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor")
		return
	}

	resourceID, err := uuid.Parse(r.URL.Query().Get("resource_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource_id")
		return
	}
	action := Action(r.URL.Query().Get("action"))
	if !action.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown action")
		return
	}

	resource, err := h.resources.AuthzResource(r.Context(), resourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	decision, err := h.decider.Probe(r.Context(), actor, resource, action)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allowed": decision.Allowed,
		"reason":  decision.Reason,
	})
}
