// errors.go maps PostgreSQL constraint violations onto repository sentinel
// errors so callers never inspect driver error codes themselves.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	// Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")

	ErrDuplicateSlug   = errors.New("organization slug already exists")
	ErrDuplicateMember = errors.New("user is already a member of this organization")
	ErrDuplicateEmail  = errors.New("email is already registered")

	// ErrLastOwner is returned when a role change or removal would leave an
	// organization without any owner.
	ErrLastOwner = errors.New("organization must keep at least one owner")

	// ErrNotPending is returned when a conditional invitation update finds
	// the row already out of the pending state.
	ErrNotPending = errors.New("invitation is no longer pending")

	// ErrTokenConsumed is returned when a verification token was redeemed
	// concurrently.
	ErrTokenConsumed = errors.New("verification token already used")
)

const pqUniqueViolation = "23505"

// constraintErrors maps unique constraint and index names from the
// migrations to their sentinel.
var constraintErrors = map[string]error{
	"organizations_slug_key":        ErrDuplicateSlug,
	"members_user_organization_key": ErrDuplicateMember,
	"users_email_key":               ErrDuplicateEmail,
}

// mapConstraintError converts a unique violation into its sentinel. Other
// errors are returned unchanged.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return err
	}
	if sentinel, ok := constraintErrors[pqErr.Constraint]; ok {
		return sentinel
	}
	return err
}
