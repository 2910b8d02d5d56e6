package audit

import "time"

// Entry is one immutable activity-log record. UserID carries the identity the
// action is attributed to: for impersonated edits that is always the acting
// administrator, never the target user.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address,omitempty"`
	At        time.Time `json:"at"`
}
