// Package models - user.go defines the User model for accounts that sign in
// with email and password.
package models

import "time"

// User represents an account. A user belongs to organizations only through
// Member rows.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	Image                *string   `json:"image,omitempty"`
	PasswordHash         string    `json:"-"`
	EmailVerified        bool      `json:"email_verified"`
	ActiveOrganizationID *string   `json:"active_organization_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
