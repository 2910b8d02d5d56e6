package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/meridian-labs/meridian/internal/access"
	"github.com/meridian-labs/meridian/internal/app"
	"github.com/meridian-labs/meridian/internal/audit"
	"github.com/meridian-labs/meridian/internal/auth"
	"github.com/meridian-labs/meridian/internal/impersonation"
	"github.com/meridian-labs/meridian/internal/pages"
	"github.com/meridian-labs/meridian/internal/platform/cache"
	"github.com/meridian-labs/meridian/internal/platform/db"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/shared"
	"github.com/meridian-labs/meridian/internal/stats"
	"github.com/meridian-labs/meridian/internal/users"
)

// directory bridges the user and page repositories into the snapshot
// lookups the impersonation manager needs.
type directory struct {
	users *users.Repository
	pages *pages.Repository
}

func (d directory) UserByID(ctx context.Context, id string) (users.User, error) {
	return d.users.ByID(ctx, id)
}

func (d directory) PageByID(ctx context.Context, id string) (pages.Page, error) {
	return d.pages.ByID(ctx, id)
}

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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	catalog := roles.NewCatalog()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo, audit.LogObserver{Logger: logger})

	statsCache := stats.NewCache(redisClient, cfg.StatsCacheTTL)
	statsRepo := stats.NewRepository(dbpool)
	statsService := stats.NewService(statsRepo, statsCache)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, catalog, auditService, statsService, logger)

	rolesMiddleware := roles.Middleware{Catalog: catalog, Roles: usersService, Logger: logger}

	pagesRepo := pages.NewRepository(dbpool)
	pagesService := pages.NewService(pagesRepo, auditService, statsService, logger)

	evaluator := access.NewEvaluator(catalog)

	manager := impersonation.NewManager(
		directory{users: usersRepo, pages: pagesRepo},
		pagesService,
		evaluator,
		auditService,
		logger,
		cfg.ImpersonationTTL,
	)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, manager)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,

		AuthHandler:          authHandler,
		UsersHandler:         users.NewHandler(logger, usersService, rolesMiddleware),
		PagesHandler:         pages.NewHandler(logger, pagesService, rolesMiddleware),
		RolesHandler:         roles.NewHandler(logger, catalog, rolesMiddleware),
		AuditHandler:         audit.NewHandler(logger, auditService, rolesMiddleware),
		StatsHandler:         stats.NewHandler(logger, statsService, rolesMiddleware),
		ImpersonationHandler: impersonation.NewHandler(logger, manager, rolesMiddleware),
	})

	// Expired delegated sessions are reaped lazily on access; the sweep
	// keeps the table from accumulating abandoned ones.
	go func() {
		ticker := time.NewTicker(cfg.ImpersonationTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := manager.Sweep(ctx); removed > 0 {
					logger.Debug("swept expired sessions", slog.Int("count", removed))
				}
			}
		}
	}()

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
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
