package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
)

var (
	subdomainPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorPattern     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ReservedSubdomains can never be assigned to a tenant.
var ReservedSubdomains = []string{
	"public", "information_schema", "pg_catalog",
	"www", "api", "admin", "mail", "ftp", "blog", "support", "help", "docs",
}

var messages = map[string]string{
	"required":    "can't be blank",
	"email":       "is invalid",
	"oneof":       "is not included in the list",
	"max":         "is too long",
	"min":         "is too short",
	"subdomain":   "can only contain lowercase letters, numbers, and hyphens (not at the beginning or end)",
	"notreserved": "is reserved and cannot be used",
	"rolecolor":   "must be a hex color such as #1a2b3c",
	"gte":         "must be greater than or equal to the minimum",
	"eqfield":     "doesn't match",
}

// Validator validates structs and reports failures as field messages.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator with the project's custom rules.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
		return subdomainPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notreserved", func(fl validator.FieldLevel) bool {
		return !IsReserved(fl.Field().String())
	})
	_ = v.RegisterValidation("rolecolor", func(fl validator.FieldLevel) bool {
		return colorPattern.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate returns nil or an *apperr.ValidationError.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := apperr.NewValidationError()
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		out.Add(fe.Field(), msg)
	}
	return out
}

// IsReserved reports whether name is a reserved subdomain.
func IsReserved(name string) bool {
	for _, r := range ReservedSubdomains {
		if r == name {
			return true
		}
	}
	return false
}
