// Package models - verification.go defines single-use tokens for email
// verification and password reset.
package models

import "time"

// VerificationPurpose says what a verification token unlocks
type VerificationPurpose string

const (
	VerificationEmail         VerificationPurpose = "email_verification"
	VerificationPasswordReset VerificationPurpose = "password_reset"
)

// Verification stores the hash of a token, never the token itself.
type Verification struct {
	ID         string              `db:"id"`
	UserID     string              `db:"user_id"`
	Purpose    VerificationPurpose `db:"purpose"`
	TokenHash  string              `db:"token_hash"`
	ExpiresAt  time.Time           `db:"expires_at"`
	ConsumedAt *time.Time          `db:"consumed_at"`
	CreatedAt  time.Time           `db:"created_at"`
}

// Usable reports whether the token can still be redeemed at now.
func (v *Verification) Usable(now time.Time) bool {
	return v.ConsumedAt == nil && now.Before(v.ExpiresAt)
}
