package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/platform/httpx"
	"github.com/bastion-authz/bastion/internal/shared"
	"github.com/bastion-authz/bastion/internal/token"
)

type accountContextKey struct{}

// ContextWithAccount stores the authenticated account on the context.
func ContextWithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext returns the account placed by the middleware, if any.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(*Account)
	return account, ok
}

// Middleware authenticates bearer tokens and loads the account.
type Middleware struct {
	logger   *slog.Logger
	tokens   *token.Manager
	revoked  *token.RevocationStore
	accounts *Service
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(logger *slog.Logger, tokens *token.Manager, revoked *token.RevocationStore, accounts *Service) *Middleware {
	return &Middleware{logger: logger, tokens: tokens, revoked: revoked, accounts: accounts}
}

// Authenticate rejects requests without a valid, unrevoked bearer token and
// populates both the account and the decision engine's actor view on the
// request context. Revocation lookup failures reject the request.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		claims, err := m.tokens.Verify(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		revoked, err := m.revoked.IsRevoked(r.Context(), claims.TokenID)
		if err != nil {
			m.logger.Error("revocation lookup", slog.Any("error", err))
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		if revoked {
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		account, err := m.accounts.AccountByID(r.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				m.logger.Error("account lookup", slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		if !account.IsActive {
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		ctx := ContextWithAccount(r.Context(), account)
		ctx = authz.ContextWithActor(ctx, account.AuthzActor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperuser allows only superuser accounts through.
func (m *Middleware) RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := AccountFromContext(r.Context())
		if !ok || !account.IsSuperuser {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return raw, raw != ""
}
