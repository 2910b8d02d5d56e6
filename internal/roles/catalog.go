package roles

import (
	"errors"
	"fmt"
)

// ErrUnknownRole indicates a role outside the closed enumeration. This is a
// data-integrity fault: internally constructed users can never trigger it.
var ErrUnknownRole = errors.New("roles: unknown role")

// Catalog is the static role-to-capability table. The capability set is the
// sole authority for what a role may do; Rank exists for display ordering
// only and must never feed an authorization decision.
type Catalog struct {
	defs   []Definition
	grants map[Role]map[Capability]struct{}
}

// NewCatalog builds the fixed catalog.
func NewCatalog() *Catalog {
	defs := []Definition{
		{
			Role:  RoleSuperAdmin,
			Label: "Super Administrator",
			Rank:  5,
			Capabilities: []Capability{
				CapManageUsers, CapManagePages, CapManageRoles, CapManageAccess,
				CapCrossUserAccess, CapViewOwnPages, CapEditOwnPages,
			},
		},
		{
			Role:  RoleAdmin,
			Label: "Administrator",
			Rank:  4,
			Capabilities: []Capability{
				CapManageUsers, CapManagePages, CapManageAccess,
				CapCrossUserAccess, CapViewOwnPages, CapEditOwnPages,
			},
		},
		{
			Role:         RoleEditor,
			Label:        "Editor",
			Rank:         3,
			Capabilities: []Capability{CapViewOwnPages, CapEditOwnPages},
		},
		{
			Role:         RoleViewer,
			Label:        "Viewer",
			Rank:         2,
			Capabilities: []Capability{CapViewOwnPages},
		},
		{
			Role:         RoleUser,
			Label:        "User",
			Rank:         1,
			Capabilities: []Capability{CapViewOwnPages},
		},
	}

	grants := make(map[Role]map[Capability]struct{}, len(defs))
	for _, def := range defs {
		set := make(map[Capability]struct{}, len(def.Capabilities))
		for _, cap := range def.Capabilities {
			set[cap] = struct{}{}
		}
		grants[def.Role] = set
	}
	return &Catalog{defs: defs, grants: grants}
}

// Definitions returns all role definitions ordered by descending rank. The
// returned slice is a copy and safe to mutate.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	for i := range out {
		caps := make([]Capability, len(c.defs[i].Capabilities))
		copy(caps, c.defs[i].Capabilities)
		out[i].Capabilities = caps
	}
	return out
}

// CapabilitiesOf returns the capability set granted to role.
func (c *Catalog) CapabilitiesOf(role Role) ([]Capability, error) {
	for _, def := range c.defs {
		if def.Role == role {
			caps := make([]Capability, len(def.Capabilities))
			copy(caps, def.Capabilities)
			return caps, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// Grants reports whether role holds the capability via explicit set
// membership.
func (c *Catalog) Grants(role Role, cap Capability) (bool, error) {
	set, ok := c.grants[role]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	_, granted := set[cap]
	return granted, nil
}

// Valid reports whether role belongs to the enumeration.
func (c *Catalog) Valid(role Role) bool {
	_, ok := c.grants[role]
	return ok
}
