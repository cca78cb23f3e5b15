// errors.go defines the error kinds every service returns. Handlers map them
// to HTTP responses through ErrorCode; anything not listed here is unexpected
// and never shown to the client verbatim.
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/helporbit/helporbit/internal/db/repositories"
	"github.com/helporbit/helporbit/internal/validation"
)

var (
	ErrPermission       = errors.New("you do not have permission to perform this action")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("invitation has already been processed")
	ErrExpired          = errors.New("link has expired")
	ErrWrongUser        = errors.New("this invitation was sent to a different email address")
	ErrSlugTaken        = errors.New("organization slug is already taken")
	ErrUniqueness       = errors.New("already exists")
	ErrUnauthenticated  = errors.New("sign in to continue")

	ErrLastOwner          = errors.New("an organization must keep at least one owner")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSelfRemoval        = errors.New("use leave to remove yourself from an organization")
	ErrEmailUnverified    = errors.New("verify your email address before answering invitations")
)

// Error codes returned to clients. The invitation acceptance page keys its
// error screens on not_found, expired, already_processed, wrong_user and
// needs_login.
const (
	CodeValidation         = "validation_error"
	CodePermission         = "permission_denied"
	CodeNotFound           = "not_found"
	CodeAlreadyProcessed   = "already_processed"
	CodeExpired            = "expired"
	CodeWrongUser          = "wrong_user"
	CodeSlugTaken          = "slug_taken"
	CodeConflict           = "conflict"
	CodeNeedsLogin         = "needs_login"
	CodeLastOwner          = "last_owner"
	CodeInvalidCredentials = "invalid_credentials"
	CodeSelfRemoval        = "self_removal"
	CodeEmailUnverified    = "email_unverified"
	CodeUnexpected         = "unexpected"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrPermission, CodePermission},
	{ErrNotFound, CodeNotFound},
	{ErrAlreadyProcessed, CodeAlreadyProcessed},
	{ErrExpired, CodeExpired},
	{ErrWrongUser, CodeWrongUser},
	{ErrSlugTaken, CodeSlugTaken},
	{ErrUniqueness, CodeConflict},
	{ErrUnauthenticated, CodeNeedsLogin},
	{ErrLastOwner, CodeLastOwner},
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrSelfRemoval, CodeSelfRemoval},
	{ErrEmailUnverified, CodeEmailUnverified},
}

// ErrorCode classifies err. Unknown errors are CodeUnexpected.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return CodeValidation
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnexpected
}

// ValidationError reports malformed input. Fields maps a JSON field name to
// its message and may be empty for whole-request problems.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + e.Fields[name]
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Message: "invalid input", Fields: map[string]string{field: msg}}
}

// validate runs the struct rules on in and converts failures to a
// ValidationError.
func validate(in any) error {
	err := validation.Struct(in)
	if err == nil {
		return nil
	}
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		return &ValidationError{Message: "invalid input", Fields: fe}
	}
	return err
}

// translate maps repository sentinels onto service errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrDuplicateSlug):
		return ErrSlugTaken
	case errors.Is(err, repositories.ErrDuplicateMember):
		return fmt.Errorf("%w: user is already a member of this organization", ErrUniqueness)
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return fmt.Errorf("%w: email is already registered", ErrUniqueness)
	case errors.Is(err, repositories.ErrLastOwner):
		return ErrLastOwner
	case errors.Is(err, repositories.ErrNotPending):
		return ErrAlreadyProcessed
	case errors.Is(err, repositories.ErrTokenConsumed):
		return ErrNotFound
	}
	return err
}
