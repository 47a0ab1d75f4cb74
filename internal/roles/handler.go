package roles

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/platform/httpx"
)

// Handler exposes role administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the role admin endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/assign", h.assign)
	r.Post("/{id}/remove", h.remove)
}

type roleRequest struct {
	Name         string `json:"name" validate:"required"`
	Code         string `json:"code" validate:"required"`
	Description  string `json:"description"`
	ParentRoleID *int64 `json:"parent_role_id"`
	Priority     int    `json:"priority"`
	IsActive     *bool  `json:"is_active"`
}

type roleResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	Description  string `json:"description,omitempty"`
	ParentRoleID *int64 `json:"parent_role_id,omitempty"`
	Priority     int    `json:"priority"`
	IsActive     bool   `json:"is_active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		items = append(items, toResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRole(w, r)
	if !ok {
		return
	}
	role, err := h.service.Create(r.Context(), fromRequest(req, 0))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeRole(w, r)
	if !ok {
		return
	}
	role, err := h.service.Update(r.Context(), fromRequest(req, id))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type assignRequest struct {
	UserID    string     `json:"user_id" validate:"required,uuid"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var assignedBy *uuid.UUID
	if actor, ok := authz.ActorFromContext(r.Context()); ok {
		actorID := actor.ID
		assignedBy = &actorID
	}
	if err := h.service.Assign(r.Context(), uuid.MustParse(req.UserID), id, assignedBy, req.ExpiresAt); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type removeRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req removeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Remove(r.Context(), uuid.MustParse(req.UserID), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeRole(w http.ResponseWriter, r *http.Request) (roleRequest, bool) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return roleRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return roleRequest{}, false
	}
	return req, true
}

func fromRequest(req roleRequest, id int64) Role {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Role{
		ID:           id,
		Name:         req.Name,
		Code:         req.Code,
		Description:  req.Description,
		ParentRoleID: req.ParentRoleID,
		Priority:     req.Priority,
		IsActive:     active,
	}
}

func toResponse(role Role) roleResponse {
	return roleResponse{
		ID:           role.ID,
		Name:         role.Name,
		Code:         role.Code,
		Description:  role.Description,
		ParentRoleID: role.ParentRoleID,
		Priority:     role.Priority,
		IsActive:     role.IsActive,
	}
}
