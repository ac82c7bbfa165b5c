// Package fees computes the platform fee split applied when an escrow
// settles in favor of the payee.
package fees

import "math"

const (
	// DefaultFeeBps is the default platform fee in basis points (2%).
	DefaultFeeBps = 200

	// BpsDivisor converts basis points to a fraction.
	BpsDivisor = 10_000

	// MaxAmount is the largest amount the calculator accepts without the
	// fee multiplication overflowing int64.
	MaxAmount = math.MaxInt64 / BpsDivisor
)

// Calculator derives the fee taken from a settled escrow amount.
// Fees round down; the payee never receives less than amount - fee,
// and fee + net always equals the original amount.
type Calculator struct {
	bps int64
}

// New creates a calculator with the given basis-point rate. Rates outside
// [0, BpsDivisor] fall back to the default.
func New(bps int64) Calculator {
	if bps < 0 || bps > BpsDivisor {
		bps = DefaultFeeBps
	}
	return Calculator{bps: bps}
}

// Bps returns the configured basis-point rate.
func (c Calculator) Bps() int64 {
	return c.bps
}

// Fee returns floor(amount * bps / BpsDivisor). Non-positive amounts
// carry no fee.
func (c Calculator) Fee(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * c.bps / BpsDivisor
}

// Split returns the fee and the net payee amount for a settlement.
func (c Calculator) Split(amount int64) (fee, net int64) {
	fee = c.Fee(amount)
	return fee, amount - fee
}
