// Package models - audit_log.go defines the AuditLog model for recording who
// changed what inside an organization.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID             string                 `json:"id"`
	UserID         *string                `json:"user_id,omitempty"` // nil for unauthenticated requests
	OrganizationID *string                `json:"organization_id,omitempty"`
	Action         string                 `json:"action"`        // "invitation.create", "member.update"
	ResourceType   *string                `json:"resource_type"` // "organization", "member", "invitation", "ticket"
	ResourceID     *string                `json:"resource_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      *string                `json:"ip_address,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
