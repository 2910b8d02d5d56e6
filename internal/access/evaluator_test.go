package access

import (
	"errors"
	"testing"

	"github.com/meridian-labs/meridian/internal/pages"
	"github.com/meridian-labs/meridian/internal/roles"
	"github.com/meridian-labs/meridian/internal/users"
)

func mockUser(id string, role roles.Role, active bool, pageIDs ...string) users.User {
	return users.User{ID: id, Role: role, IsActive: active, AssignedPages: pageIDs}
}

func mockPage(id string, active bool) pages.Page {
	return pages.Page{ID: id, Title: "Revenue", Type: pages.TypePowerBI, IsActive: active}
}

func TestEvaluateSelfAccess(t *testing.T) {
	eval := NewEvaluator(roles.NewCatalog())

	cases := []struct {
		name    string
		actor   users.User
		page    pages.Page
		action  Action
		allowed bool
		reason  Reason
	}{
		{
			name:    "assigned active page view",
			actor:   mockUser("u1", roles.RoleViewer, true, "p1"),
			page:    mockPage("p1", true),
			action:  ActionView,
			allowed: true,
		},
		{
			name:   "inactive actor denied first",
			actor:  mockUser("u1", roles.RoleAdmin, false, "p1"),
			page:   mockPage("p1", true),
			action: ActionView,
			reason: ReasonActorInactive,
		},
		{
			name:   "unassigned page",
			actor:  mockUser("u1", roles.RoleViewer, true, "p2"),
			page:   mockPage("p1", true),
			action: ActionView,
			reason: ReasonNotAssigned,
		},
		{
			name:   "inactive page",
			actor:  mockUser("u1", roles.RoleViewer, true, "p1"),
			page:   mockPage("p1", false),
			action: ActionView,
			reason: ReasonPageInactive,
		},
		{
			name:    "editor may edit own page",
			actor:   mockUser("u1", roles.RoleEditor, true, "p1"),
			page:    mockPage("p1", true),
			action:  ActionEdit,
			allowed: true,
		},
		{
			name:   "viewer may not edit own page",
			actor:  mockUser("u1", roles.RoleViewer, true, "p1"),
			page:   mockPage("p1", true),
			action: ActionEdit,
			reason: ReasonEditForbidden,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := eval.Evaluate(tc.actor, tc.actor, tc.page, tc.action)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if d.Allowed != tc.allowed {
				t.Fatalf("allowed = %v, want %v (reason %q)", d.Allowed, tc.allowed, d.Reason)
			}
			if !tc.allowed && d.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestEvaluateDelegatedAccess(t *testing.T) {
	eval := NewEvaluator(roles.NewCatalog())

	admin := mockUser("a1", roles.RoleAdmin, true)
	target := mockUser("u1", roles.RoleViewer, true, "p1")

	cases := []struct {
		name    string
		actor   users.User
		target  users.User
		page    pages.Page
		action  Action
		allowed bool
		reason  Reason
	}{
		{
			name:    "admin views target page",
			actor:   admin,
			target:  target,
			page:    mockPage("p1", true),
			action:  ActionView,
			allowed: true,
		},
		{
			name:    "admin edits target page",
			actor:   admin,
			target:  target,
			page:    mockPage("p1", true),
			action:  ActionEdit,
			allowed: true,
		},
		{
			name:   "editor cannot cross into other users",
			actor:  mockUser("e1", roles.RoleEditor, true, "p1"),
			target: target,
			page:   mockPage("p1", true),
			action: ActionView,
			reason: ReasonCrossAccessForbidden,
		},
		{
			name:   "inactive target",
			actor:  admin,
			target: mockUser("u1", roles.RoleViewer, false, "p1"),
			page:   mockPage("p1", true),
			action: ActionView,
			reason: ReasonTargetInactive,
		},
		{
			name:   "target not assigned",
			actor:  admin,
			target: mockUser("u1", roles.RoleViewer, true),
			page:   mockPage("p1", true),
			action: ActionView,
			reason: ReasonNotAssigned,
		},
		{
			name:   "page deactivated",
			actor:  admin,
			target: target,
			page:   mockPage("p1", false),
			action: ActionView,
			reason: ReasonPageInactive,
		},
		{
			name:   "inactive admin denied before anything else",
			actor:  mockUser("a1", roles.RoleAdmin, false),
			target: mockUser("u1", roles.RoleViewer, false, "p1"),
			page:   mockPage("p1", false),
			action: ActionView,
			reason: ReasonActorInactive,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := eval.Evaluate(tc.actor, tc.target, tc.page, tc.action)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if d.Allowed != tc.allowed {
				t.Fatalf("allowed = %v, want %v (reason %q)", d.Allowed, tc.allowed, d.Reason)
			}
			if !tc.allowed && d.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestEvaluateUnknownRoleIsFatal(t *testing.T) {
	eval := NewEvaluator(roles.NewCatalog())

	actor := mockUser("u1", roles.Role("ghost"), true, "p1")
	_, err := eval.Evaluate(actor, actor, mockPage("p1", true), ActionEdit)
	if !errors.Is(err, roles.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}

	admin := mockUser("a1", roles.Role("ghost"), true)
	_, err = eval.Evaluate(admin, mockUser("u1", roles.RoleViewer, true, "p1"), mockPage("p1", true), ActionView)
	if !errors.Is(err, roles.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
