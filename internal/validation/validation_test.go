package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPrincipal(t *testing.T) {
	assert.True(t, IsValidPrincipal("0x742d35cc6634c0532925a3b844bc9e7595f2bd18"))
	assert.True(t, IsValidPrincipal("0x742D35CC6634C0532925A3B844BC9E7595F2BD18"))
	assert.False(t, IsValidPrincipal(""))
	assert.False(t, IsValidPrincipal("742d35cc6634c0532925a3b844bc9e7595f2bd18"), "missing 0x prefix")
	assert.False(t, IsValidPrincipal("0x742d35"), "too short")
	assert.False(t, IsValidPrincipal("0xZZZd35cc6634c0532925a3b844bc9e7595f2bd18"), "non-hex chars")
}

func TestSanitizePrincipal(t *testing.T) {
	assert.Equal(t, "0xabcdef", SanitizePrincipal("  0xABCdef "))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
}

func TestValidate_CollectsFailures(t *testing.T) {
	errs := Validate(
		Required("payer", ""),
		ValidPrincipal("payee", "not-an-address"),
		PositiveAmount("amount", 0),
	)
	assert.Len(t, errs, 3)
	assert.Equal(t, "payer", errs[0].Field)
	assert.Contains(t, errs.Error(), "payer")
}

func TestValidate_AllPass(t *testing.T) {
	errs := Validate(
		Required("payer", "0x742d35cc6634c0532925a3b844bc9e7595f2bd18"),
		ValidPrincipal("payer", "0x742d35cc6634c0532925a3b844bc9e7595f2bd18"),
		PositiveAmount("amount", 100),
		MaxLength("reason", "late delivery", MaxReasonLength),
	)
	assert.Empty(t, errs)
}

func TestValidPrincipal_EmptyPasses(t *testing.T) {
	assert.Nil(t, ValidPrincipal("service_id", "")())
}

func TestMaxLength(t *testing.T) {
	long := strings.Repeat("x", MaxReasonLength+1)
	assert.NotNil(t, MaxLength("reason", long, MaxReasonLength)())
}

func TestValidationErrors_EmptyError(t *testing.T) {
	assert.Equal(t, "validation failed", ValidationErrors{}.Error())
}
