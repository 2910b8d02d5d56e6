package audit

import (
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-labs/meridian/internal/platform/httpx"
	"github.com/meridian-labs/meridian/internal/roles"
)

// Handler exposes the recent-activity projection.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      roles.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(roles.CapManageUsers))
		r.Get("/", h.recent)
	})
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	entries, err := h.service.Recent(r.Context(), n)
	if err != nil {
		h.logger.Error("recent activity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
