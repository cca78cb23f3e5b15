package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helporbit/helporbit/internal/db/repositories"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrPermission, CodePermission},
		{fmt.Errorf("loading: %w", ErrNotFound), CodeNotFound},
		{ErrAlreadyProcessed, CodeAlreadyProcessed},
		{ErrExpired, CodeExpired},
		{ErrWrongUser, CodeWrongUser},
		{ErrSlugTaken, CodeSlugTaken},
		{fmt.Errorf("%w: email", ErrUniqueness), CodeConflict},
		{ErrUnauthenticated, CodeNeedsLogin},
		{ErrLastOwner, CodeLastOwner},
		{ErrSelfRemoval, CodeSelfRemoval},
		{ErrEmailUnverified, CodeEmailUnverified},
		{invalidField("name", "is required"), CodeValidation},
		{errors.New("connection reset"), CodeUnexpected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), "ErrorCode(%v)", tt.err)
	}
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(repositories.ErrDuplicateSlug), ErrSlugTaken)
	assert.ErrorIs(t, translate(repositories.ErrDuplicateMember), ErrUniqueness)
	assert.ErrorIs(t, translate(repositories.ErrDuplicateEmail), ErrUniqueness)
	assert.ErrorIs(t, translate(repositories.ErrLastOwner), ErrLastOwner)
	assert.ErrorIs(t, translate(repositories.ErrNotPending), ErrAlreadyProcessed)
	assert.ErrorIs(t, translate(fmt.Errorf("wrapped: %w", repositories.ErrNotFound)), ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
	assert.NoError(t, translate(nil))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Message: "invalid input", Fields: map[string]string{"slug": "is taken", "name": "is required"}}
	assert.Equal(t, "invalid input: name is required; slug is taken", err.Error())
	assert.Equal(t, "bad", (&ValidationError{Message: "bad"}).Error())
}

func TestPage(t *testing.T) {
	limit, offset := page(0, -5, 25, 100)
	assert.Equal(t, 25, limit)
	assert.Equal(t, 0, offset)
	limit, _ = page(1000, 0, 25, 100)
	assert.Equal(t, 100, limit)
}
