// Package models - invitation.go defines the Invitation model and its status
// transitions. Expiry is never stored as a status; it is computed at read time.
package models

import "time"

// InvitationStatus is the lifecycle state of an invitation
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusRejected  InvitationStatus = "rejected"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s InvitationStatus) IsTerminal() bool {
	return s == InvitationStatusAccepted || s == InvitationStatusRejected || s == InvitationStatusCancelled
}

// CanTransitionTo reports whether s may move to next. Only pending
// invitations move, and only into a terminal state.
func (s InvitationStatus) CanTransitionTo(next InvitationStatus) bool {
	return s == InvitationStatusPending && next.IsTerminal()
}

// Invitation is a pending offer of membership at a specific role
type Invitation struct {
	ID             string           `db:"id" json:"id"`
	Email          string           `db:"email" json:"email"`
	InviterID      *string          `db:"inviter_id" json:"inviter_id,omitempty"` // member id, not user id
	OrganizationID string           `db:"organization_id" json:"organization_id"`
	Role           Role             `db:"role" json:"role"`
	Status         InvitationStatus `db:"status" json:"status"`
	ExpiresAt      time.Time        `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the invitation is still pending but past its
// expiry at now. The stored status stays pending.
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationStatusPending && now.After(i.ExpiresAt)
}

// InvitationDetails is an invitation joined with the organization and
// inviter display fields, as shown on the acceptance page.
type InvitationDetails struct {
	Invitation
	OrganizationName string  `db:"organization_name" json:"organization_name"`
	OrganizationSlug string  `db:"organization_slug" json:"organization_slug"`
	InviterName      *string `db:"inviter_name" json:"inviter_name,omitempty"`
	InviterEmail     *string `db:"inviter_email" json:"inviter_email,omitempty"`
	IsExpired        bool    `db:"-" json:"is_expired"`
}
