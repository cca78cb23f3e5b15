// Package models - member.go defines organization memberships and the joined
// views used for member lists and a user's own organization list.
package models

import "time"

// Member is the join entity granting a user a role inside one organization.
// (UserID, OrganizationID) is unique.
type Member struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// MemberWithUser includes the user's display fields for member lists
type MemberWithUser struct {
	Member
	UserName      string  `json:"user_name"`
	UserEmail     string  `json:"user_email"`
	UserImage     *string `json:"user_image,omitempty"`
	EmailVerified bool    `json:"email_verified"`
}

// UserMembership includes organization details for a user's membership
type UserMembership struct {
	MemberID         string    `json:"member_id"`
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	OrganizationSlug string    `json:"organization_slug"`
	Logo             *string   `json:"logo,omitempty"`
	Role             Role      `json:"role"`
	CreatedAt        time.Time `json:"created_at"`
}

// MemberListOptions controls paging and ordering of member lists.
type MemberListOptions struct {
	Limit  int
	Offset int
	// Descending sorts by created_at newest first.
	Descending bool
}
