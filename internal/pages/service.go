package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-labs/meridian/internal/audit"
)

// RepositoryPort defines data access methods for pages and assignments.
type RepositoryPort interface {
	List(ctx context.Context) ([]Page, error)
	ByID(ctx context.Context, id string) (Page, error)
	ByIDs(ctx context.Context, ids []string) ([]Page, error)
	Insert(ctx context.Context, p Page) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateContent(ctx context.Context, id string, title string, layout []byte) error
	DeleteCascade(ctx context.Context, id string) (int64, error)
	Assign(ctx context.Context, userID, pageID string) (bool, error)
	Unassign(ctx context.Context, userID, pageID string) (bool, error)
	AssignedPageIDs(ctx context.Context, userID string) ([]string, error)
	UsersWithAccess(ctx context.Context, pageID string) ([]string, error)
}

// CreatePageRequest carries page provisioning input.
type CreatePageRequest struct {
	Title   string          `json:"title" validate:"required,max=160"`
	Type    string          `json:"type" validate:"required"`
	SubType string          `json:"sub_type" validate:"max=64"`
	Layout  json.RawMessage `json:"layout"`
}

// StatsInvalidator drops cached dashboard aggregates after a mutation. May be
// nil when no dashboard cache is wired.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service owns page records and the user-to-page assignment relation.
// Assignment mutations for one user are serialized through a per-user lock so
// concurrent assign/unassign cannot interleave inconsistently; different
// users proceed independently.
type Service struct {
	repo   RepositoryPort
	audit  *audit.Service
	stats  StatsInvalidator
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditSvc *audit.Service, stats StatsInvalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		audit:     auditSvc,
		stats:     stats,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		userLocks: make(map[string]*sync.Mutex),
	}
}

// List returns every page, inactive ones included. Gated behind manage-pages
// at the router, so this is the administrator view.
func (s *Service) List(ctx context.Context) ([]Page, error) {
	return s.repo.List(ctx)
}

// Get fetches a page by id.
func (s *Service) Get(ctx context.Context, id string) (Page, error) {
	return s.repo.ByID(ctx, id)
}

// Create provisions a new page.
func (s *Service) Create(ctx context.Context, actorID string, req CreatePageRequest) (Page, error) {
	pageType := Type(strings.TrimSpace(req.Type))
	if !ValidType(pageType) {
		return Page{}, fmt.Errorf("pages: invalid page type %q", req.Type)
	}
	page := Page{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Type:      pageType,
		SubType:   strings.TrimSpace(req.SubType),
		IsActive:  true,
		Layout:    req.Layout,
		CreatedAt: s.now(),
	}
	page.UpdatedAt = page.CreatedAt
	if err := s.repo.Insert(ctx, page); err != nil {
		return Page{}, err
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "page.create",
		Entity:   "page",
		EntityID: page.ID,
		Details:  fmt.Sprintf("created page %q (%s)", page.Title, page.Type),
	})
	s.invalidateStats(ctx)
	return page, nil
}

// SetActive toggles the page activation flag.
func (s *Service) SetActive(ctx context.Context, actorID, pageID string, active bool) (Page, error) {
	if err := s.repo.SetActive(ctx, pageID, active); err != nil {
		return Page{}, err
	}
	page, err := s.repo.ByID(ctx, pageID)
	if err != nil {
		return Page{}, err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "page.set_active",
		Entity:   "page",
		EntityID: pageID,
		Details:  fmt.Sprintf("%s page %q", state, page.Title),
	})
	s.invalidateStats(ctx)
	return page, nil
}

// Delete removes a page and cascade-purges every assignment pointing at it in
// one atomic step.
func (s *Service) Delete(ctx context.Context, actorID, pageID string) error {
	page, err := s.repo.ByID(ctx, pageID)
	if err != nil {
		return err
	}
	purged, err := s.repo.DeleteCascade(ctx, pageID)
	if err != nil {
		return err
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "page.delete",
		Entity:   "page",
		EntityID: pageID,
		Details:  fmt.Sprintf("deleted page %q, purged %d assignments", page.Title, purged),
	})
	s.invalidateStats(ctx)
	return nil
}

// Assign adds pageID to the user's set. Idempotent; emits one audit entry per
// call attributed to the invoking capability holder.
func (s *Service) Assign(ctx context.Context, actorID, userID, pageID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	added, err := s.repo.Assign(ctx, userID, pageID)
	if err != nil {
		return err
	}
	detail := fmt.Sprintf("assigned page %s to user %s", pageID, userID)
	if !added {
		detail = fmt.Sprintf("page %s already assigned to user %s", pageID, userID)
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "access.assign",
		Entity:   "page_assignment",
		EntityID: pageID,
		Details:  detail,
	})
	if added {
		s.invalidateStats(ctx)
	}
	return nil
}

// Unassign removes pageID from the user's set. Idempotent.
func (s *Service) Unassign(ctx context.Context, actorID, userID, pageID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	removed, err := s.repo.Unassign(ctx, userID, pageID)
	if err != nil {
		return err
	}
	detail := fmt.Sprintf("unassigned page %s from user %s", pageID, userID)
	if !removed {
		detail = fmt.Sprintf("page %s was not assigned to user %s", pageID, userID)
	}
	s.audit.Append(ctx, audit.Entry{
		UserID:   actorID,
		Action:   "access.unassign",
		Entity:   "page_assignment",
		EntityID: pageID,
		Details:  detail,
	})
	if removed {
		s.invalidateStats(ctx)
	}
	return nil
}

// PagesFor resolves a user's assignments to live, active pages. Ids pointing
// at deleted pages are dropped; the second return value reports how many ids
// could not be resolved so callers can surface the mismatch.
func (s *Service) PagesFor(ctx context.Context, userID string) ([]Page, int, error) {
	ids, err := s.repo.AssignedPageIDs(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	resolved, err := s.repo.ByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]Page, len(resolved))
	for _, p := range resolved {
		byID[p.ID] = p
	}
	out := make([]Page, 0, len(ids))
	missing := 0
	for _, id := range ids {
		page, ok := byID[id]
		if !ok {
			missing++
			continue
		}
		if !page.IsActive {
			continue
		}
		out = append(out, page)
	}
	if missing > 0 && s.logger != nil {
		s.logger.Warn("stale page assignments",
			slog.String("user_id", userID),
			slog.Int("missing", missing))
	}
	return out, missing, nil
}

// UsersWithAccess returns ids of every user holding an assignment to pageID.
func (s *Service) UsersWithAccess(ctx context.Context, pageID string) ([]string, error) {
	if _, err := s.repo.ByID(ctx, pageID); err != nil {
		return nil, err
	}
	return s.repo.UsersWithAccess(ctx, pageID)
}

// ApplyContent applies a title/layout mutation on behalf of the impersonation
// manager. Auditing happens there, with session attribution.
func (s *Service) ApplyContent(ctx context.Context, pageID string, title string, layout []byte) error {
	return s.repo.UpdateContent(ctx, pageID, title, layout)
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

func (s *Service) lockUser(userID string) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
