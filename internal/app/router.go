package app

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-labs/meridian/internal/audit"
	"github.com/meridian-labs/meridian/internal/auth"
	"github.com/meridian-labs/meridian/internal/impersonation"
	"github.com/meridian-labs/meridian/internal/pages"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/shared"
	"github.com/meridian-labs/meridian/internal/stats"
	"github.com/meridian-labs/meridian/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	PagesHandler         *pages.Handler
	RolesHandler         *roles.Handler
	AuditHandler         *audit.Handler
	StatsHandler         *stats.Handler
	ImpersonationHandler *impersonation.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"csrf_token":"` + token + `"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/pages", params.PagesHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/activity", params.AuditHandler.MountRoutes)
		r.Route("/stats", params.StatsHandler.MountRoutes)
		r.Route("/impersonation", params.ImpersonationHandler.MountRoutes)
		r.Route("/me", params.PagesHandler.MountSelfRoutes)
	})

	return r
}
