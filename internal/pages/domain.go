package pages

import (
	"encoding/json"
	"time"
)

// Type classifies how a page is rendered. SubType is a free-form qualifier
// interpreted by the renderer; the core treats it as opaque.
type Type string

const (
	TypePowerBI     Type = "powerbi"
	TypeSpreadsheet Type = "spreadsheet"
	TypeCustom      Type = "custom"
)

// ValidType reports whether t belongs to the page type enumeration.
func ValidType(t Type) bool {
	switch t {
	case TypePowerBI, TypeSpreadsheet, TypeCustom:
		return true
	}
	return false
}

// Page represents a named dashboard, spreadsheet or embedded report. Layout
// is the renderer-owned layout document; the core only stores and versions it.
type Page struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      Type            `json:"type"`
	SubType   string          `json:"sub_type,omitempty"`
	IsActive  bool            `json:"is_active"`
	Layout    json.RawMessage `json:"layout,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
