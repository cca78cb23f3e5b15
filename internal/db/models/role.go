// Package models - role.go defines the organization roles a member can hold.
package models

// Role is a member's authorization level inside one organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleGuest}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return true
	}
	return false
}

// IsManager reports whether r may manage members and invitations.
func (r Role) IsManager() bool {
	return r == RoleOwner || r == RoleAdmin
}
