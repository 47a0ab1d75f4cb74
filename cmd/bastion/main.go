package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bastion-authz/bastion/internal/app"
	"github.com/bastion-authz/bastion/internal/audit"
	"github.com/bastion-authz/bastion/internal/auth"
	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/observability"
	platformcache "github.com/bastion-authz/bastion/internal/platform/cache"
	"github.com/bastion-authz/bastion/internal/platform/db"
	"github.com/bastion-authz/bastion/internal/resources"
	"github.com/bastion-authz/bastion/internal/roles"
	"github.com/bastion-authz/bastion/internal/token"
	"github.com/bastion-authz/bastion/internal/users"
	"github.com/bastion-authz/bastion/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := platformcache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	tokens := token.NewManager(cfg.TokenSecret, cfg.TokenTTL)
	revoked := token.NewRevocationStore(redisClient)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, tokens, revoked)
	authMiddleware := auth.NewMiddleware(logger, tokens, revoked, authService)

	recorder := audit.NewRecorder(pool)
	authzRepo := authz.NewPostgresRepository(pool)
	engine := authz.NewEngine(authzRepo, recorder, logger)
	engine.SetDecisionHook(metrics.ObserveDecision)
	permCache := authz.NewCache(redisClient, cfg.PermissionCacheTTL)
	decider := authz.NewService(engine, permCache, logger)
	overrides := authz.NewOverrideService(authzRepo, decider, permCache, logger)

	resourcesRepo := resources.NewRepository(pool)
	resourcesService := resources.NewService(resourcesRepo, decider, permCache, logger)
	resourcesHandler := resources.NewHandler(logger, resourcesService)

	permissionsHandler := authz.NewHandler(logger, overrides, decider, resourcesService)

	rolesService := roles.NewService(roles.NewRepository(pool))
	rolesHandler := roles.NewHandler(logger, rolesService)

	usersHandler := users.NewHandler(logger, users.NewRepository(pool))

	auditService := audit.NewService(audit.NewPostgresRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, cfg.AuditRetentionDays, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		PermissionsHandler: permissionsHandler,
		ResourcesHandler:   resourcesHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
