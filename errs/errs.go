// Package errs defines the error taxonomy shared across the streaming
// orchestration layer. Callers classify failures with errors.Is against
// these sentinels rather than inspecting message text.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a bad or missing required request field.
	// Surfaced pre-stream as a 4xx response.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a referenced artifact or page is absent.
	ErrNotFound = errors.New("resource not found")

	// ErrUpstream indicates a downstream generation or search call failed.
	ErrUpstream = errors.New("upstream call failed")

	// ErrMalformed indicates a generation call returned output that failed
	// structural validation. Treated as upstream by callers: the attempt
	// fails, stored state is never touched.
	ErrMalformed = errors.New("malformed generation output")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrValidation, args)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrNotFound, args)...)
}

// Upstreamf wraps ErrUpstream with a formatted message.
func Upstreamf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrUpstream, args)...)
}

// Malformedf wraps ErrMalformed with a formatted message.
func Malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrMalformed, args)...)
}

func prepend(err error, args []any) []any {
	return append([]any{err}, args...)
}
