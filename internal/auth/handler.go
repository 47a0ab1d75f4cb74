package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/bastion-authz/bastion/internal/platform/httpx"
	"github.com/bastion-authz/bastion/internal/token"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	tokens   *token.Manager
	revoked  *token.RevocationStore
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, tokens *token.Manager, revoked *token.RevocationStore) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		tokens:   tokens,
		revoked:  revoked,
		validate: validator.New(),
	}
}

// MountPublicRoutes registers the endpoints reachable without a token.
// Login gets a tighter rate limit than the global one to slow credential
// stuffing.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.login)
	r.Post("/logout", h.logout)
}

// MountProtectedRoutes registers the endpoints that require authentication.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/refresh", h.refresh)
	r.Get("/me", h.me)
}

type registerRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	DepartmentID *int64 `json:"department_id"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.Register(r.Context(), Registration{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		h.logger.Error("register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.issue(w, r, account)
}

type logoutRequest struct {
	Token string `json:"token" validate:"required"`
}

// logout revokes the presented token. A token that already expired counts as
// logged out.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	claims, err := h.tokens.Verify(req.Token)
	if errors.Is(err, token.ErrTokenExpired) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	if err := h.revoked.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// refresh issues a fresh token and revokes the one that carried the request.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	if raw, present := bearerToken(r); present {
		if claims, err := h.tokens.Verify(raw); err == nil {
			if err := h.revoked.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
				h.logger.Error("refresh revoke", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
		}
	}
	h.issue(w, r, account)
}

type accountResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DepartmentID   *int64     `json:"department_id,omitempty"`
	DepartmentCode string     `json:"department_code,omitempty"`
	IsActive       bool       `json:"is_active"`
	IsSuperuser    bool       `json:"is_superuser"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, accountResponse{
		ID:             account.ID.String(),
		Email:          account.Email,
		FirstName:      account.FirstName,
		LastName:       account.LastName,
		DepartmentID:   account.DepartmentID,
		DepartmentCode: account.DepartmentCode,
		IsActive:       account.IsActive,
		IsSuperuser:    account.IsSuperuser,
		LastLogin:      account.LastLogin,
	})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, account *Account) {
	raw, _, err := h.tokens.Issue(account.ID)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{
		AccessToken: raw,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
	})
}
