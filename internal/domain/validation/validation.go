// Package validation holds the error type returned when an input violates a
// schema constraint of the marketplace data model.
package validation

import (
	"fmt"
	"strings"
)

// Error reports a single violated constraint.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errorf returns a *Error for field with a formatted message.
func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Required returns an error if v is blank.
func Required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &Error{Field: field, Message: "is required"}
	}
	return nil
}

// MaxLen returns an error if v is longer than n runes.
func MaxLen(field, v string, n int) error {
	if len([]rune(v)) > n {
		return Errorf(field, "must be at most %d characters", n)
	}
	return nil
}

// Range returns an error if v is outside [lo, hi].
func Range(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return Errorf(field, "must be between %d and %d", lo, hi)
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
