package roles

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/meridian-labs/meridian/internal/shared"
)

// RoleSource resolves the role of an authenticated user.
type RoleSource interface {
	RoleOf(ctx context.Context, userID string) (Role, error)
}

// Middleware wires capability gates for HTTP handlers.
type Middleware struct {
	Catalog *Catalog
	Roles   RoleSource
	Logger  *slog.Logger
}

// Require ensures the current user holds every listed capability.
func (m Middleware) Require(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.CurrentUserID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			role, err := m.Roles.RoleOf(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("resolve role", slog.String("user_id", userID), slog.Any("error", err))
				}
				if errors.Is(err, shared.ErrNotFound) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			for _, cap := range caps {
				granted, err := m.Catalog.Grants(role, cap)
				if err != nil {
					// Unknown role on a stored user is an integrity fault,
					// not an authorization miss. Surface it loudly.
					if m.Logger != nil {
						m.Logger.Error("role outside enumeration",
							slog.String("user_id", userID),
							slog.String("role", string(role)),
							slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if !granted {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
