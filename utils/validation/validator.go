package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance. The "notblank" tag rejects
// strings that are empty after trimming.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{validate: v}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return &Errors{fields: FormatValidationErrors(err), cause: err}
	}
	return nil
}

// Errors is returned by ValidateStruct. Its message lists every failing
// field in a stable order.
type Errors struct {
	fields map[string]string
	cause  error
}

// NewFieldErrors builds an Errors value for checks done outside struct tags.
func NewFieldErrors(fields map[string]string) *Errors {
	return &Errors{fields: fields, cause: errors.New("validation failed")}
}

func (e *Errors) Error() string {
	if len(e.fields) == 0 {
		return e.cause.Error()
	}
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.fields[k])
	}
	return strings.Join(parts, "; ")
}

// Fields returns the per-field messages keyed by lower-cased field name.
func (e *Errors) Fields() map[string]string {
	return e.fields
}

func (e *Errors) Unwrap() error {
	return e.cause
}

// FormatValidationErrors converts validation errors to a user-friendly format
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			field := strings.ToLower(e.Field())
			switch e.Tag() {
			case "required", "notblank":
				errors[field] = fmt.Sprintf("%s is required", field)
			case "min":
				errors[field] = fmt.Sprintf("%s must be at least %s characters", field, e.Param())
			case "max":
				errors[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
			case "gt", "gte":
				errors[field] = fmt.Sprintf("%s must be greater than %s", field, e.Param())
			default:
				errors[field] = fmt.Sprintf("%s is invalid", field)
			}
		}
	}

	return errors
}

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
