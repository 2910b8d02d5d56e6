package auth

import (
	"time"

	"github.com/meridian-labs/meridian/internal/roles"
)

// Account is the credential-bearing view of a user record.
type Account struct {
	ID           string
	Username     string
	DisplayName  string
	Role         roles.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
