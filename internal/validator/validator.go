// Package validator exposes the single request-validation instance used
// by every handler.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a Validate with the project's custom rules registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", notBlank)
	return v
}

// notBlank rejects strings that are empty after trimming whitespace.
// `required` alone accepts "   ", which is useless for catalog codes,
// booking ids, and reversal reasons.
func notBlank(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		// Not a string; leave it to the other validators.
		return true
	}
	return strings.TrimSpace(str) != ""
}
