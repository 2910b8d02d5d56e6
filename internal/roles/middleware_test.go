package roles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/meridian/internal/shared"
)

type stubRoleSource struct {
	roles map[string]Role
	err   error
}

func (s *stubRoleSource) RoleOf(ctx context.Context, userID string) (Role, error) {
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func requireMiddleware(source RoleSource, caps ...Capability) http.Handler {
	mw := Middleware{Catalog: NewCatalog(), Roles: source}
	return mw.Require(caps...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if userID == "" {
		return req
	}
	sess := &shared.Session{ID: "s1"}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireGrantsCapabilityHolder(t *testing.T) {
	handler := requireMiddleware(&stubRoleSource{roles: map[string]Role{"a1": RoleAdmin}}, CapManageUsers)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("a1"))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireRejectsMissingCapability(t *testing.T) {
	handler := requireMiddleware(&stubRoleSource{roles: map[string]Role{"v1": RoleViewer}}, CapManageUsers)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("v1"))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireRejectsAnonymous(t *testing.T) {
	handler := requireMiddleware(&stubRoleSource{}, CapViewOwnPages)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(""))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireRejectsUnknownUser(t *testing.T) {
	handler := requireMiddleware(&stubRoleSource{roles: map[string]Role{}}, CapViewOwnPages)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("ghost"))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireUnknownRoleIsServerFault(t *testing.T) {
	handler := requireMiddleware(&stubRoleSource{roles: map[string]Role{"u1": Role("ghost")}}, CapViewOwnPages)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("u1"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestRequireNoCapabilitiesPassesThrough(t *testing.T) {
	handler := requireMiddleware(&stubRoleSource{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(""))
	require.Equal(t, http.StatusOK, res.Code)
}
