package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-labs/meridian/internal/auth"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/shared"
	_ "github.com/meridian-labs/meridian/testing"
)

type stubRepo struct {
	account *auth.Account
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	if s.account == nil || s.account.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

type recordingCloser struct {
	closed []string
}

func (c *recordingCloser) CloseAllFor(ctx context.Context, userID string) {
	c.closed = append(c.closed, userID)
}

func viewerAccount(t *testing.T, password string, active bool) *auth.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.Account{
		ID:           "u1",
		Username:     "jordan",
		DisplayName:  "Jordan",
		Role:         roles.RoleViewer,
		PasswordHash: string(hashed),
		IsActive:     active,
	}
}

func newAuthHandler(t *testing.T, repo auth.Repository, closer auth.SessionCloser) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), auth.NewService(repo), sessionManager, closer)
	return handler, sessionManager
}

func doLogin(t *testing.T, handler *auth.Handler, sessions *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.LoginForTest(res, req)
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{account: viewerAccount(t, "correct-horse", true)}, nil)

	res, sess := doLogin(t, handler, sessions, `{"username":"jordan","password":"correct-horse"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.User() != "u1" {
		t.Fatalf("expected session bound to u1, got %q", sess.User())
	}
	if !strings.Contains(res.Body.String(), `"role":"viewer"`) {
		t.Fatalf("expected role in response, got %s", res.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{account: viewerAccount(t, "correct-horse", true)}, nil)

	res, sess := doLogin(t, handler, sessions, `{"username":"jordan","password":"battery-staple"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
	if sess.User() != "" {
		t.Fatalf("failed login must not bind the session")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{account: viewerAccount(t, "correct-horse", false)}, nil)

	res, _ := doLogin(t, handler, sessions, `{"username":"jordan","password":"correct-horse"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for inactive account, got %d", res.Code)
	}
}

func TestLogoutClosesDelegatedSessions(t *testing.T) {
	closer := &recordingCloser{}
	handler, sessions := newAuthHandler(t, &stubRepo{account: viewerAccount(t, "correct-horse", true)}, closer)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	sess, err := sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetUser("u1")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.LogoutForTest(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", res.Code)
	}
	if len(closer.closed) != 1 || closer.closed[0] != "u1" {
		t.Fatalf("expected delegated sessions closed for u1, got %v", closer.closed)
	}
}
