package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: http.StatusOK},
		{name: "not found", err: apperr.NotFound("tenant"), expected: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", apperr.NotFound("role")), expected: http.StatusNotFound},
		{name: "forbidden", err: apperr.Forbidden("missing permission"), expected: http.StatusForbidden},
		{name: "unauthorized", err: apperr.ErrUnauthorized, expected: http.StatusUnauthorized},
		{name: "validation", err: apperr.Invalid("subdomain", "is reserved"), expected: http.StatusUnprocessableEntity},
		{name: "connection", err: &apperr.ConnectionError{Op: "switch", Schema: "acme", Err: errors.New("boom")}, expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(apperr.Status(tt.err), qt.Equals, tt.expected)
		})
	}
}

func TestValidationErrorMessages(t *testing.T) {
	c := qt.New(t)

	v := apperr.NewValidationError()
	c.Assert(v.OrNil(), qt.IsNil)

	v.Add("subdomain", "is reserved")
	v.Add("name", "can't be blank")
	v.Add("subdomain", "is invalid")

	c.Assert(v.Messages(), qt.DeepEquals, []string{
		"name can't be blank",
		"subdomain is reserved",
		"subdomain is invalid",
	})
	c.Assert(v.OrNil(), qt.ErrorMatches, "validation failed: name can't be blank, .*")
}

func TestConnectionErrorUnwraps(t *testing.T) {
	c := qt.New(t)
	cause := errors.New("connection reset")

	err := fmt.Errorf("switch: %w", &apperr.ConnectionError{Op: "switch", Schema: "acme", Err: cause})

	c.Assert(apperr.IsConnection(err), qt.IsTrue)
	c.Assert(errors.Is(err, cause), qt.IsTrue)
	c.Assert(apperr.IsConnection(cause), qt.IsFalse)
}
