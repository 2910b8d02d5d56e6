package pages

import (
	"context"
	"testing"

	"github.com/meridian-labs/meridian/internal/audit"
	"github.com/meridian-labs/meridian/internal/shared"
)

type stubPageRepo struct {
	pages       map[string]Page
	assignments map[string][]string

	assignCalls   int
	unassignCalls int
	purged        int64
	deletedID     string
}

func newStubPageRepo() *stubPageRepo {
	return &stubPageRepo{
		pages:       make(map[string]Page),
		assignments: make(map[string][]string),
	}
}

func (r *stubPageRepo) List(ctx context.Context) ([]Page, error) {
	out := make([]Page, 0, len(r.pages))
	for _, p := range r.pages {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubPageRepo) ByID(ctx context.Context, id string) (Page, error) {
	p, ok := r.pages[id]
	if !ok {
		return Page{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *stubPageRepo) ByIDs(ctx context.Context, ids []string) ([]Page, error) {
	var out []Page
	for _, id := range ids {
		if p, ok := r.pages[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubPageRepo) Insert(ctx context.Context, p Page) error {
	r.pages[p.ID] = p
	return nil
}

func (r *stubPageRepo) SetActive(ctx context.Context, id string, active bool) error {
	p, ok := r.pages[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = active
	r.pages[id] = p
	return nil
}

func (r *stubPageRepo) UpdateContent(ctx context.Context, id string, title string, layout []byte) error {
	p, ok := r.pages[id]
	if !ok {
		return shared.ErrNotFound
	}
	if title != "" {
		p.Title = title
	}
	if len(layout) > 0 {
		p.Layout = layout
	}
	r.pages[id] = p
	return nil
}

func (r *stubPageRepo) DeleteCascade(ctx context.Context, id string) (int64, error) {
	if _, ok := r.pages[id]; !ok {
		return 0, shared.ErrNotFound
	}
	delete(r.pages, id)
	r.deletedID = id
	var purged int64
	for userID, ids := range r.assignments {
		kept := ids[:0]
		for _, pid := range ids {
			if pid == id {
				purged++
				continue
			}
			kept = append(kept, pid)
		}
		r.assignments[userID] = kept
	}
	r.purged = purged
	return purged, nil
}

func (r *stubPageRepo) Assign(ctx context.Context, userID, pageID string) (bool, error) {
	r.assignCalls++
	for _, id := range r.assignments[userID] {
		if id == pageID {
			return false, nil
		}
	}
	r.assignments[userID] = append(r.assignments[userID], pageID)
	return true, nil
}

func (r *stubPageRepo) Unassign(ctx context.Context, userID, pageID string) (bool, error) {
	r.unassignCalls++
	ids := r.assignments[userID]
	for i, id := range ids {
		if id == pageID {
			r.assignments[userID] = append(ids[:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *stubPageRepo) AssignedPageIDs(ctx context.Context, userID string) ([]string, error) {
	return r.assignments[userID], nil
}

func (r *stubPageRepo) UsersWithAccess(ctx context.Context, pageID string) ([]string, error) {
	var out []string
	for userID, ids := range r.assignments {
		for _, id := range ids {
			if id == pageID {
				out = append(out, userID)
			}
		}
	}
	return out, nil
}

type memAuditRepo struct {
	entries []audit.Entry
}

func (r *memAuditRepo) Insert(ctx context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return r.entries, nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

func newTestService() (*Service, *stubPageRepo, *memAuditRepo) {
	repo := newStubPageRepo()
	audits := &memAuditRepo{}
	return NewService(repo, audit.NewService(audits, nil), nil, nil), repo, audits
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc, _, audits := newTestService()

	_, err := svc.Create(context.Background(), "admin", CreatePageRequest{Title: "X", Type: "widget"})
	if err == nil {
		t.Fatalf("expected error for unknown page type")
	}
	if len(audits.entries) != 0 {
		t.Fatalf("failed create must not audit")
	}
}

func TestCreateAuditsAndActivates(t *testing.T) {
	svc, repo, audits := newTestService()

	page, err := svc.Create(context.Background(), "admin", CreatePageRequest{Title: " Revenue ", Type: "powerbi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !page.IsActive {
		t.Fatalf("new pages must start active")
	}
	if page.Title != "Revenue" {
		t.Fatalf("title not trimmed: %q", page.Title)
	}
	if _, ok := repo.pages[page.ID]; !ok {
		t.Fatalf("page not persisted")
	}
	if len(audits.entries) != 1 || audits.entries[0].Action != "page.create" {
		t.Fatalf("expected one page.create entry, got %+v", audits.entries)
	}
	if audits.entries[0].UserID != "admin" {
		t.Fatalf("audit attributed to %q, want admin", audits.entries[0].UserID)
	}
}

func TestAssignIsIdempotentAndAlwaysAudited(t *testing.T) {
	svc, repo, audits := newTestService()
	ctx := context.Background()

	if err := svc.Assign(ctx, "admin", "u1", "p1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Assign(ctx, "admin", "u1", "p1"); err != nil {
		t.Fatalf("assign repeat: %v", err)
	}
	if got := len(repo.assignments["u1"]); got != 1 {
		t.Fatalf("expected 1 assignment, got %d", got)
	}
	if len(audits.entries) != 2 {
		t.Fatalf("expected an audit entry per call, got %d", len(audits.entries))
	}
	for _, e := range audits.entries {
		if e.Action != "access.assign" || e.UserID != "admin" {
			t.Fatalf("unexpected audit entry %+v", e)
		}
	}
}

func TestUnassignMissingIsNoOp(t *testing.T) {
	svc, repo, audits := newTestService()
	ctx := context.Background()

	if err := svc.Unassign(ctx, "admin", "u1", "p1"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if repo.unassignCalls != 1 {
		t.Fatalf("expected repository call")
	}
	if len(audits.entries) != 1 || audits.entries[0].Action != "access.unassign" {
		t.Fatalf("expected one access.unassign entry, got %+v", audits.entries)
	}
}

func TestDeleteCascadePurgesAssignments(t *testing.T) {
	svc, repo, audits := newTestService()
	ctx := context.Background()

	repo.pages["p1"] = Page{ID: "p1", Title: "Revenue", Type: TypePowerBI, IsActive: true}
	repo.assignments["u1"] = []string{"p1"}
	repo.assignments["u2"] = []string{"p1", "p2"}

	if err := svc.Delete(ctx, "admin", "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if repo.deletedID != "p1" || repo.purged != 2 {
		t.Fatalf("expected cascade purge of 2 assignments, got %d", repo.purged)
	}
	if len(audits.entries) != 1 || audits.entries[0].Action != "page.delete" {
		t.Fatalf("expected one page.delete entry, got %+v", audits.entries)
	}
}

func TestDeleteMissingPage(t *testing.T) {
	svc, _, audits := newTestService()

	err := svc.Delete(context.Background(), "admin", "ghost")
	if err == nil {
		t.Fatalf("expected error for missing page")
	}
	if len(audits.entries) != 0 {
		t.Fatalf("failed delete must not audit")
	}
}

func TestMutationsInvalidateStats(t *testing.T) {
	repo := newStubPageRepo()
	stats := &countingInvalidator{}
	svc := NewService(repo, audit.NewService(&memAuditRepo{}, nil), stats, nil)
	ctx := context.Background()

	page, err := svc.Create(ctx, "admin", CreatePageRequest{Title: "Revenue", Type: "powerbi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if stats.calls != 1 {
		t.Fatalf("create: invalidations = %d, want 1", stats.calls)
	}

	if err := svc.Assign(ctx, "admin", "u1", page.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Assign(ctx, "admin", "u1", page.ID); err != nil {
		t.Fatalf("assign repeat: %v", err)
	}
	if stats.calls != 2 {
		t.Fatalf("no-op assign must not invalidate, got %d", stats.calls)
	}

	if err := svc.Unassign(ctx, "admin", "u1", page.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if err := svc.Unassign(ctx, "admin", "u1", page.ID); err != nil {
		t.Fatalf("unassign repeat: %v", err)
	}
	if stats.calls != 3 {
		t.Fatalf("no-op unassign must not invalidate, got %d", stats.calls)
	}

	if err := svc.Delete(ctx, "admin", page.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if stats.calls != 4 {
		t.Fatalf("invalidations = %d, want 4", stats.calls)
	}
}

func TestPagesForDropsStaleAndInactive(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	repo.pages["live"] = Page{ID: "live", Title: "Live", Type: TypeCustom, IsActive: true}
	repo.pages["dark"] = Page{ID: "dark", Title: "Dark", Type: TypeCustom, IsActive: false}
	repo.assignments["u1"] = []string{"live", "dark", "deleted"}

	pages, missing, err := svc.PagesFor(ctx, "u1")
	if err != nil {
		t.Fatalf("pages for: %v", err)
	}
	if len(pages) != 1 || pages[0].ID != "live" {
		t.Fatalf("expected only the live page, got %+v", pages)
	}
	if missing != 1 {
		t.Fatalf("expected 1 stale id, got %d", missing)
	}
}

func TestUsersWithAccessRequiresPage(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.UsersWithAccess(ctx, "ghost"); err == nil {
		t.Fatalf("expected error for missing page")
	}

	repo.pages["p1"] = Page{ID: "p1", Title: "Revenue", Type: TypePowerBI, IsActive: true}
	repo.assignments["u1"] = []string{"p1"}
	repo.assignments["u2"] = []string{"p1"}

	got, err := svc.UsersWithAccess(ctx, "p1")
	if err != nil {
		t.Fatalf("users with access: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 users, got %d", len(got))
	}
}
