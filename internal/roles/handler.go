package roles

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-labs/meridian/internal/platform/httpx"
)

// Handler exposes the role catalog as a read-only projection.
type Handler struct {
	logger  *slog.Logger
	catalog *Catalog
	mw      Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog, mw Middleware) *Handler {
	return &Handler{logger: logger, catalog: catalog, mw: mw}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(CapManageRoles))
		r.Get("/", h.listDefinitions)
	})
}

func (h *Handler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.catalog.Definitions()})
}
