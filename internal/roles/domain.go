package roles

// Role is one of the closed set of roles a user account can hold.
type Role string

// The full role enumeration. No other role value is valid anywhere in the
// system; repositories reject values outside this set on write.
const (
	RoleUser       Role = "user"
	RoleViewer     Role = "viewer"
	RoleEditor     Role = "editor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Capability is an atomic named permission granted to one or more roles.
type Capability string

const (
	CapManageUsers     Capability = "manage-users"
	CapManagePages     Capability = "manage-pages"
	CapManageRoles     Capability = "manage-roles"
	CapManageAccess    Capability = "manage-access"
	CapCrossUserAccess Capability = "cross-user-access"
	CapViewOwnPages    Capability = "view-own-pages"
	CapEditOwnPages    Capability = "edit-own-pages"
)

// Definition describes one role for display purposes.
type Definition struct {
	Role         Role         `json:"role"`
	Label        string       `json:"label"`
	Rank         int          `json:"rank"`
	Capabilities []Capability `json:"capabilities"`
}
