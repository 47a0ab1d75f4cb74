package resources

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/platform/httpx"
)

// Handler exposes resource CRUD endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the resource endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/categories", h.categories)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type resourceResponse struct {
	ID           string     `json:"id"`
	CategoryCode string     `json:"category_code"`
	Kind         string     `json:"kind"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	OwnerID      string     `json:"owner_id"`
	IsPublic     bool       `json:"is_public"`
	IsArchived   bool       `json:"is_archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	items, err := h.service.List(r.Context(), actor, includeArchived)
	if err != nil {
		h.logger.Error("list resources", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]resourceResponse, 0, len(items))
	for _, res := range items {
		out = append(out, toResponse(res))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	type categoryResponse struct {
		ID          int64  `json:"id"`
		Code        string `json:"code"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Code: c.Code, Name: c.Name, Description: c.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(res))
}

type createRequest struct {
	CategoryCode string `json:"category_code" validate:"required"`
	Kind         string `json:"kind" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	IsPublic     bool   `json:"is_public"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.Create(r.Context(), actor, CreateInput{
		CategoryCode: req.CategoryCode,
		Kind:         req.Kind,
		Name:         req.Name,
		Description:  req.Description,
		IsPublic:     req.IsPublic,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(res))
}

type updateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	OwnerID     *string `json:"owner_id" validate:"omitempty,uuid"`
	IsPublic    *bool   `json:"is_public"`
	IsArchived  *bool   `json:"is_archived"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		IsArchived:  req.IsArchived,
	}
	if req.OwnerID != nil {
		ownerID := uuid.MustParse(*req.OwnerID)
		in.OwnerID = &ownerID
	}
	res, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(res))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) resourceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource id")
		return uuid.Nil, false
	}
	return id, true
}

func toResponse(res Resource) resourceResponse {
	return resourceResponse{
		ID:           res.ID.String(),
		CategoryCode: res.CategoryCode,
		Kind:         res.Kind,
		Name:         res.Name,
		Description:  res.Description,
		OwnerID:      res.OwnerID.String(),
		IsPublic:     res.IsPublic,
		IsArchived:   res.IsArchived,
		CreatedAt:    res.CreatedAt,
		UpdatedAt:    res.UpdatedAt,
	}
}
