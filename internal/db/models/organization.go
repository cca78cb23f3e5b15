// Package models - organization.go defines the Organization model, the tenant
// that owns members, invitations and tickets.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Organization represents a tenant
type Organization struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Slug      string               `json:"slug"` // lowercase, globally unique
	Logo      *string              `json:"logo,omitempty"`
	Metadata  OrganizationMetadata `json:"metadata"`
	IsPublic  bool                 `json:"is_public"` // discoverable through search
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// OrganizationMetadata is free-form JSONB attached to an organization, e.g.
// {"domain": "acme.com", "color": "#ff6600"}.
type OrganizationMetadata map[string]any

// Domain returns the "domain" entry, or "" when absent.
func (m OrganizationMetadata) Domain() string {
	if d, ok := m["domain"].(string); ok {
		return d
	}
	return ""
}

// Value implements driver.Valuer so metadata is written as JSONB.
func (m OrganizationMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *OrganizationMetadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = OrganizationMetadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	out := OrganizationMetadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("failed to decode organization metadata: %w", err)
		}
	}
	*m = out
	return nil
}
