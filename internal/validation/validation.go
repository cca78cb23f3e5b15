// Package validation checks user input before it reaches the services.
// Struct rules use go-playground/validator tags; failures come back as
// FieldErrors keyed by the JSON field name so handlers can return them as-is.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"

	"github.com/helporbit/helporbit/internal/db/models"
)

const (
	MinSlugLength = 2
	MaxSlugLength = 48
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Body inputs carry json tags and query inputs carry form tags.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}
	must("slug", func(fl validator.FieldLevel) bool {
		return ValidateSlug(fl.Field().String()) == nil
	})
	must("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	must("ticket_status", func(fl validator.FieldLevel) bool {
		return models.TicketStatus(fl.Field().String()).Valid()
	})
	must("ticket_priority", func(fl validator.FieldLevel) bool {
		return models.TicketPriority(fl.Field().String()).Valid()
	})
	return v
}

// FieldErrors maps a field name to a human-readable message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + " " + e[f]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates s against its `validate` tags. It returns nil or a
// non-empty FieldErrors.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; !seen {
			out[field] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "slug":
		return fmt.Sprintf("must be %d-%d lowercase letters, digits or single hyphens", MinSlugLength, MaxSlugLength)
	case "role":
		return "must be one of: owner, admin, member, guest"
	case "ticket_status":
		return "must be one of: open, in_progress, waiting_for_customer, resolved, closed"
	case "ticket_priority":
		return "must be one of: low, medium, high, urgent"
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}

// ValidateSlug checks an already-normalized organization slug.
func ValidateSlug(s string) error {
	if len(s) < MinSlugLength || len(s) > MaxSlugLength {
		return fmt.Errorf("slug must be between %d and %d characters", MinSlugLength, MaxSlugLength)
	}
	if !slugPattern.MatchString(s) {
		return fmt.Errorf("slug may contain only lowercase letters, digits and single hyphens")
	}
	return nil
}

// NormalizeSlug lowercases and trims a client-supplied slug. It does not
// repair invalid characters; ValidateSlug rejects those.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// symbolWords spells out symbols as separate words so "R&D" becomes
// "r-and-d" rather than "randd".
var symbolWords = map[string]string{"&": " and ", "@": " at "}

// SuggestSlug derives a slug from an organization name, transliterating
// accents ("Café Zürich" → "cafe-zurich"). It returns "" when nothing
// usable remains.
func SuggestSlug(name string) string {
	s := slug.Make(slug.Substitute(name, symbolWords))
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	if ValidateSlug(s) != nil {
		return ""
	}
	return s
}

// NormalizeEmail trims and lowercases an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
