// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNotFound is returned when a tenant, user, role or permission is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is an authorization denial.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized means the caller could not be authenticated.
	ErrUnauthorized = errors.New("unauthorized")
)

// NotFound wraps ErrNotFound with the missing resource name.
func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// ValidationError carries field level messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Invalid builds a ValidationError holding a single message.
func Invalid(field, message string) *ValidationError {
	v := NewValidationError()
	v.Add(field, message)
	return v
}

// Add records a message against field.
func (v *ValidationError) Add(field, message string) {
	v.Fields[field] = append(v.Fields[field], message)
}

// Empty reports whether no messages were recorded.
func (v *ValidationError) Empty() bool {
	return len(v.Fields) == 0
}

// OrNil returns nil for an empty ValidationError so callers can write
// `return v.OrNil()`.
func (v *ValidationError) OrNil() error {
	if v == nil || v.Empty() {
		return nil
	}
	return v
}

// Messages returns "field message" strings in field order.
func (v *ValidationError) Messages() []string {
	fields := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		for _, m := range v.Fields[f] {
			out = append(out, f+" "+m)
		}
	}
	return out
}

func (v *ValidationError) Error() string {
	return "validation failed: " + strings.Join(v.Messages(), ", ")
}

// ConnectionError reports a database directive that the connection rejected.
type ConnectionError struct {
	Op     string
	Schema string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Schema, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnection reports whether err is or wraps a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body with the matching status.
// Validation failures list their field messages under "errors".
func Respond(c *gin.Context, err error) {
	status := Status(err)

	var ve *ValidationError
	if errors.As(err, &ve) {
		c.AbortWithStatusJSON(status, gin.H{"error": "validation failed", "errors": ve.Messages()})
		return
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
