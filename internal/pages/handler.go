package pages

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-labs/meridian/internal/platform/httpx"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/shared"
)

// Handler manages page and assignment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	mw       roles.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw roles.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		mw:       mw,
	}
}

// MountRoutes registers page management and assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(roles.CapManagePages))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{pageID}", h.get)
		r.Put("/{pageID}/active", h.setActive)
		r.Delete("/{pageID}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(roles.CapManageAccess))
		r.Post("/assignments", h.assign)
		r.Delete("/assignments", h.unassign)
		r.Get("/assignments/user/{userID}", h.pagesFor)
		r.Get("/assignments/page/{pageID}", h.usersWithAccess)
	})
}

// MountSelfRoutes registers the ordinary-user projection of their own pages.
func (h *Handler) MountSelfRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(roles.CapViewOwnPages))
		r.Get("/pages", h.myPages)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list pages", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Get(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.CurrentUserID(r.Context())
	page, err := h.service.Create(r.Context(), actorID, req)
	if err != nil {
		h.logger.Error("create page", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, page)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Active == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "body must carry an active flag")
		return
	}
	actorID, _ := shared.CurrentUserID(r.Context())
	page, err := h.service.SetActive(r.Context(), actorID, chi.URLParam(r, "pageID"), *req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actorID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.Delete(r.Context(), actorID, chi.URLParam(r, "pageID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	PageID string `json:"page_id" validate:"required,uuid4"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAssignment(w, r)
	if !ok {
		return
	}
	actorID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.Assign(r.Context(), actorID, req.UserID, req.PageID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAssignment(w, r)
	if !ok {
		return
	}
	actorID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.Unassign(r.Context(), actorID, req.UserID, req.PageID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pagesFor(w http.ResponseWriter, r *http.Request) {
	pages, missing, err := h.service.PagesFor(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages, "stale_assignments": missing})
}

func (h *Handler) usersWithAccess(w http.ResponseWriter, r *http.Request) {
	userIDs, err := h.service.UsersWithAccess(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_ids": userIDs})
}

func (h *Handler) myPages(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	pages, _, err := h.service.PagesFor(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *Handler) decodeAssignment(w http.ResponseWriter, r *http.Request) (assignmentRequest, bool) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}
