// Package apperr defines the error kinds shared across the application.
// Callers match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrSearchSyntax        = errors.New("search syntax error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstream            = errors.New("upstream error")
)

// Validation returns an ErrValidation carrying a descriptive message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// WrapValidation marks err (typically from ozzo-validation) as a validation failure.
func WrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
