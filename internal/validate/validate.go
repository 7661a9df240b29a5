// SPDX-License-Identifier: MIT

// Package validate accumulates configuration validation errors so every
// problem in a config file is reported at once.
package validate

import (
	"fmt"
	"slices"
	"strings"
)

// Error is one failed rule on one field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects Errors. The zero value is ready to use.
type Validator struct {
	errs []Error
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) addf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

// IsValid reports whether nothing has failed so far.
func (v *Validator) IsValid() bool { return len(v.errs) == 0 }

// Errors returns the failures in the order they were recorded.
func (v *Validator) Errors() []Error { return v.errs }

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errs)}
}

// ValidationError is the error form of a failed Validator.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
