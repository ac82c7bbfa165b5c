package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFee_DefaultRate(t *testing.T) {
	c := New(DefaultFeeBps)

	assert.Equal(t, int64(2000), c.Fee(100_000), "2 percent of 100000")
	assert.Equal(t, int64(0), c.Fee(0))
	assert.Equal(t, int64(0), c.Fee(-5))
	assert.Equal(t, int64(0), c.Fee(49), "fee below one unit rounds down to zero")
	assert.Equal(t, int64(1), c.Fee(50))
}

func TestFee_NeverRoundsUp(t *testing.T) {
	c := New(DefaultFeeBps)
	for _, amount := range []int64{1, 49, 99, 101, 9_999, 12_345, 54_321} {
		fee := c.Fee(amount)
		// floor(a*200/10000) == a/50 for the default rate
		assert.Equal(t, amount/50, fee, "amount %d", amount)
	}
}

func TestSplit_FeePlusNetEqualsAmount(t *testing.T) {
	c := New(DefaultFeeBps)
	for _, amount := range []int64{1, 50, 99, 100_000, 1_000_001, MaxAmount} {
		fee, net := c.Split(amount)
		assert.Equal(t, amount, fee+net, "fee+net must equal amount for %d", amount)
		assert.GreaterOrEqual(t, net, int64(0))
		assert.GreaterOrEqual(t, fee, int64(0))
	}
}

func TestNew_RejectsOutOfRangeRates(t *testing.T) {
	assert.Equal(t, int64(DefaultFeeBps), New(-1).Bps())
	assert.Equal(t, int64(DefaultFeeBps), New(BpsDivisor+1).Bps())
	assert.Equal(t, int64(0), New(0).Bps(), "zero rate is a valid rate")
	assert.Equal(t, int64(BpsDivisor), New(BpsDivisor).Bps(), "full-amount rate is a valid rate")
}

func TestFee_ZeroRate(t *testing.T) {
	c := New(0)
	fee, net := c.Split(100_000)
	assert.Equal(t, int64(0), fee)
	assert.Equal(t, int64(100_000), net)
}

func TestFee_MaxAmountDoesNotOverflow(t *testing.T) {
	c := New(BpsDivisor)
	fee, net := c.Split(MaxAmount)
	assert.Equal(t, int64(MaxAmount), fee)
	assert.Equal(t, int64(0), net)
}
