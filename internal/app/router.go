package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bastion-authz/bastion/internal/audit"
	"github.com/bastion-authz/bastion/internal/auth"
	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/observability"
	"github.com/bastion-authz/bastion/internal/resources"
	"github.com/bastion-authz/bastion/internal/roles"
	"github.com/bastion-authz/bastion/internal/users"
	"github.com/bastion-authz/bastion/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	AuthMiddleware     *auth.Middleware
	PermissionsHandler *authz.Handler
	ResourcesHandler   *resources.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults. Everything
// except health, metrics, and the public auth endpoints sits behind the bearer
// token middleware; administration surfaces additionally require a superuser.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Authenticate)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)

		r.Route("/resources", params.ResourcesHandler.MountRoutes)
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireSuperuser)
			r.Route("/roles", params.RolesHandler.MountRoutes)
			r.Route("/users", params.UsersHandler.MountRoutes)
			r.Route("/audit", params.AuditHandler.MountRoutes)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
