package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/platform/httpx"
)

// Handler exposes user administration endpoints.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers the user admin endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/deactivate", h.setActive(false))
	r.Post("/{id}/activate", h.setActive(true))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": toResponses(users), "total": len(users)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	user, err := h.repo.GetUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
			return
		}
		if err := h.repo.SetActive(r.Context(), id, active); err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

type response struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DepartmentID   *int64    `json:"department_id,omitempty"`
	DepartmentCode string    `json:"department_code,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
}

func toResponse(user User) response {
	return response{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		DepartmentID:   user.DepartmentID,
		DepartmentCode: user.DepartmentCode,
		IsActive:       user.IsActive,
		IsSuperuser:    user.IsSuperuser,
	}
}

func toResponses(users []User) []response {
	out := make([]response, 0, len(users))
	for _, user := range users {
		out = append(out, toResponse(user))
	}
	return out
}
