package impersonation

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-labs/meridian/internal/platform/httpx"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/shared"
)

// Handler exposes the impersonation session lifecycle.
type Handler struct {
	logger   *slog.Logger
	manager  *Manager
	validate *validator.Validate
	mw       roles.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, manager *Manager, mw roles.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		manager:  manager,
		validate: validator.New(),
		mw:       mw,
	}
}

// MountRoutes registers the session endpoints. The capability gate here is a
// cheap first filter; the manager re-runs the full access evaluation on every
// state transition.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(roles.CapCrossUserAccess))
		r.Post("/", h.open)
		r.Get("/{sessionID}", h.get)
		r.Post("/{sessionID}/escalate", h.escalate)
		r.Post("/{sessionID}/edit", h.applyEdit)
		r.Post("/{sessionID}/close", h.close)
	})
}

type openRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required,uuid4"`
	PageID       string `json:"page_id" validate:"required,uuid4"`
	Mode         string `json:"mode" validate:"required,oneof=preview edit"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	adminID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	sess, err := h.manager.Open(r.Context(), adminID, req.TargetUserID, req.PageID, Mode(req.Mode))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sess)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) escalate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Escalate(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) applyEdit(w http.ResponseWriter, r *http.Request) {
	var mut Mutation
	if err := httpx.DecodeJSON(r, &mut); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.manager.ApplyEdit(r.Context(), chi.URLParam(r, "sessionID"), mut); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.manager.Close(r.Context(), chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var denied *DeniedError
	switch {
	case errors.As(err, &denied):
		httpx.Problem(w, http.StatusForbidden, "Access Denied", string(denied.Reason))
	case errors.Is(err, ErrConflictingSession):
		httpx.Problem(w, http.StatusConflict, "Conflicting Session", err.Error())
	case errors.Is(err, ErrSessionNotEditable):
		httpx.Problem(w, http.StatusConflict, "Session Not Editable", err.Error())
	case errors.Is(err, ErrEmptyMutation):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionClosed):
		httpx.Problem(w, http.StatusGone, "Session Gone", err.Error())
	case errors.Is(err, ErrSessionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, roles.ErrUnknownRole):
		h.logger.Error("integrity fault in access evaluation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Integrity Fault", "")
	default:
		httpx.RespondError(w, err)
	}
}
