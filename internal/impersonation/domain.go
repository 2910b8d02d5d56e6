package impersonation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-labs/meridian/internal/access"
)

// Mode distinguishes read-only delegated access from mutation-permitted
// delegated access.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeEdit    Mode = "edit"
)

// State tracks the session lifecycle. Expired is observed lazily: a session
// past its deadline reports StateExpired on the touch that discovers it and
// settles into StateClosed on the touch after that.
type State string

const (
	StateOpen    State = "open"
	StateExpired State = "expired"
	StateClosed  State = "closed"
)

// Session is the transient delegated-access context: acting admin A
// previewing or editing page P as target user U. Sessions live only in
// process memory and are never persisted.
type Session struct {
	ID            string    `json:"id"`
	ActingAdminID string    `json:"acting_admin_id"`
	TargetUserID  string    `json:"target_user_id"`
	PageID        string    `json:"page_id"`
	Mode          Mode      `json:"mode"`
	State         State     `json:"state"`
	OpenedAt      time.Time `json:"opened_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Mutation is the page edit applied through a live-edit session. Empty fields
// leave the corresponding page content untouched.
type Mutation struct {
	Title  string          `json:"title,omitempty"`
	Layout json.RawMessage `json:"layout,omitempty"`
}

func (m Mutation) empty() bool {
	return m.Title == "" && len(m.Layout) == 0
}

var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("impersonation: session not found")
	// ErrConflictingSession rejects a second open on the same
	// (admin, target, page) triple while one is already live.
	ErrConflictingSession = errors.New("impersonation: session already open for this admin, user and page")
	// ErrSessionExpired rejects operations on a session past its deadline.
	ErrSessionExpired = errors.New("impersonation: session expired")
	// ErrSessionNotEditable rejects mutations while the session is in
	// preview mode.
	ErrSessionNotEditable = errors.New("impersonation: session is in preview mode")
	// ErrSessionClosed rejects operations on a closed session.
	ErrSessionClosed = errors.New("impersonation: session closed")
	// ErrEmptyMutation rejects an edit that changes nothing.
	ErrEmptyMutation = errors.New("impersonation: empty mutation")
)

// DeniedError carries the access-evaluator reason for a refused open,
// escalate or edit.
type DeniedError struct {
	Reason access.Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("impersonation: access denied: %s", e.Reason)
}
