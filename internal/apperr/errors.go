package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the service's error taxonomy. Handlers translate
// these to HTTP outcomes; everything else is an internal server error.
var (
	// ErrUnauthenticated means no valid principal accompanied the request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means an authenticated principal was denied by policy.
	ErrForbidden = errors.New("forbidden")

	// ErrTenantNotFound means no domain matched the request host. Callers
	// must reject the request rather than fall back to a default partition.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrContextAlreadyActive is an integration bug: a partition context was
	// opened while another was active on the same request.
	ErrContextAlreadyActive = errors.New("partition context already active")

	// ErrNotFound means the resource does not exist within the caller's
	// visible scope.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries field-level detail for malformed input. It never
// contains cross-tenant information.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validation builds a single-field validation error.
func Validation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
