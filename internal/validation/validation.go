// Package validation provides input validation for custody operations.
package validation

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MaxReasonLength bounds free-text dispute reasons.
const MaxReasonLength = 1024

// IsValidPrincipal checks if a string is a valid principal identifier
// (a hex address with 0x prefix).
func IsValidPrincipal(p string) bool {
	return strings.HasPrefix(p, "0x") && common.IsHexAddress(p)
}

// SanitizePrincipal normalizes a principal identifier to lowercase.
func SanitizePrincipal(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// SanitizeString trims whitespace, strips null bytes, and limits length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs validators and collects their failures.
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks that a field is non-empty.
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidPrincipal checks that a field holds a valid principal identifier.
// Empty values pass; combine with Required for mandatory fields.
func ValidPrincipal(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidPrincipal(value) {
			return &ValidationError{Field: field, Message: "must be a valid principal (0x + 40 hex chars)"}
		}
		return nil
	}
}

// PositiveAmount checks that an integer amount is strictly positive.
func PositiveAmount(field string, value int64) func() *ValidationError {
	return func() *ValidationError {
		if value <= 0 {
			return &ValidationError{Field: field, Message: "must be greater than zero"}
		}
		return nil
	}
}

// MaxLength checks that a field does not exceed max bytes.
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
