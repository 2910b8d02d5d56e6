package roles

import (
	"errors"
	"testing"
)

func TestCatalogGrants(t *testing.T) {
	c := NewCatalog()

	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleSuperAdmin, CapManageRoles, true},
		{RoleSuperAdmin, CapCrossUserAccess, true},
		{RoleAdmin, CapManageRoles, false},
		{RoleAdmin, CapCrossUserAccess, true},
		{RoleAdmin, CapManageUsers, true},
		{RoleEditor, CapEditOwnPages, true},
		{RoleEditor, CapCrossUserAccess, false},
		{RoleViewer, CapViewOwnPages, true},
		{RoleViewer, CapEditOwnPages, false},
		{RoleUser, CapViewOwnPages, true},
		{RoleUser, CapManagePages, false},
	}
	for _, tc := range cases {
		got, err := c.Grants(tc.role, tc.cap)
		if err != nil {
			t.Fatalf("grants(%s, %s): %v", tc.role, tc.cap, err)
		}
		if got != tc.want {
			t.Fatalf("grants(%s, %s) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestCatalogUnknownRole(t *testing.T) {
	c := NewCatalog()

	if _, err := c.Grants(Role("ghost"), CapViewOwnPages); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := c.CapabilitiesOf(Role("ghost")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if c.Valid(Role("ghost")) {
		t.Fatalf("expected ghost role to be invalid")
	}
	if !c.Valid(RoleViewer) {
		t.Fatalf("expected viewer role to be valid")
	}
}

func TestCatalogDefinitionsOrderedByRank(t *testing.T) {
	defs := NewCatalog().Definitions()
	if len(defs) != 5 {
		t.Fatalf("expected 5 definitions, got %d", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Rank <= defs[i].Rank {
			t.Fatalf("definitions not ordered by descending rank: %s before %s", defs[i-1].Role, defs[i].Role)
		}
	}
}

func TestCatalogDefinitionsReturnsCopy(t *testing.T) {
	c := NewCatalog()
	defs := c.Definitions()
	defs[0].Capabilities[0] = Capability("tampered")

	fresh := c.Definitions()
	if fresh[0].Capabilities[0] == Capability("tampered") {
		t.Fatalf("mutating the returned slice leaked into the catalog")
	}
}
