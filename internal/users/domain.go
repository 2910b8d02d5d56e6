package users

import (
	"time"

	"github.com/meridian-labs/meridian/internal/roles"
)

// User represents a managed user account. AssignedPages holds the ids of
// pages the user may reach, in assignment order, each id at most once.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	DisplayName   string     `json:"display_name"`
	Role          roles.Role `json:"role"`
	IsActive      bool       `json:"is_active"`
	AssignedPages []string   `json:"assigned_pages"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasPage reports whether a page id is in the user's assignment set.
func (u User) HasPage(pageID string) bool {
	for _, id := range u.AssignedPages {
		if id == pageID {
			return true
		}
	}
	return false
}
