package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-labs/meridian/internal/audit"
	"github.com/meridian-labs/meridian/internal/roles"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	ByID(ctx context.Context, id string) (User, error)
	Insert(ctx context.Context, u User, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	RoleOf(ctx context.Context, id string) (roles.Role, error)
}

// CreateUserRequest carries provisioning input.
type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Role        string `json:"role" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
}

// StatsInvalidator drops cached dashboard aggregates after a mutation. May be
// nil when no dashboard cache is wired.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service handles user management business logic.
type Service struct {
	repo    RepositoryPort
	catalog *roles.Catalog
	audit   *audit.Service
	stats   StatsInvalidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, catalog *roles.Catalog, auditSvc *audit.Service, stats StatsInvalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		audit:   auditSvc,
		stats:   stats,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get fetches a single user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.ByID(ctx, id)
}

// RoleOf resolves a user's role for capability gating.
func (s *Service) RoleOf(ctx context.Context, id string) (roles.Role, error) {
	return s.repo.RoleOf(ctx, id)
}

// Create provisions a new user account.
func (s *Service) Create(ctx context.Context, actorID string, req CreateUserRequest) (User, error) {
	role := roles.Role(strings.TrimSpace(req.Role))
	if !s.catalog.Valid(role) {
		return User{}, fmt.Errorf("%w: %q", roles.ErrUnknownRole, req.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{
		ID:          uuid.NewString(),
		Username:    strings.TrimSpace(req.Username),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        role,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	user.UpdatedAt = user.CreatedAt
	if err := s.repo.Insert(ctx, user, string(hash)); err != nil {
		return User{}, err
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "user.create",
		Entity:   "user",
		EntityID: user.ID,
		Details:  fmt.Sprintf("created user %s with role %s", user.Username, user.Role),
	})
	s.invalidateStats(ctx)
	return user, nil
}

// SetActive toggles a user's activation flag.
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool) (User, error) {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return User{}, err
	}
	user, err := s.repo.ByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "user.set_active",
		Entity:   "user",
		EntityID: userID,
		Details:  fmt.Sprintf("%s user %s", state, user.Username),
	})
	s.invalidateStats(ctx)
	return user, nil
}

// Delete removes the user and its own assignment rows.
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	user, err := s.repo.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "user.delete",
		Entity:   "user",
		EntityID: userID,
		Details:  fmt.Sprintf("deleted user %s (%d page assignments removed)", user.Username, len(user.AssignedPages)),
	})
	s.invalidateStats(ctx)
	return nil
}

// invalidateStats drops the cached dashboard counters so the next read
// recomputes. Failures only degrade freshness; the mutation stands.
func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("stats invalidation failed", slog.Any("error", err))
	}
}
