// Package clock provides the logical tick counter the custody engine uses
// for expiry decisions.
//
// Ticks stand in for block height: the counter moves only when an external
// caller advances it, never from the wall clock, so timeout behavior is
// reproducible across runs and across replicas replaying the same sequence
// of ticks.
package clock

import "sync/atomic"

// Clock is a monotonic logical counter. The zero value starts at tick 0
// and is ready to use.
type Clock struct {
	ticks atomic.Int64
}

// New creates a clock starting at tick 0.
func New() *Clock {
	return &Clock{}
}

// NewAt creates a clock starting at the given tick.
func NewAt(tick int64) *Clock {
	c := &Clock{}
	if tick > 0 {
		c.ticks.Store(tick)
	}
	return c
}

// Now returns the current tick.
func (c *Clock) Now() int64 {
	return c.ticks.Load()
}

// Advance moves the clock forward by n ticks and returns the new tick.
// The clock never moves backwards: n <= 0 is a no-op.
func (c *Clock) Advance(n int64) int64 {
	if n <= 0 {
		return c.ticks.Load()
	}
	return c.ticks.Add(n)
}

// Tick advances the clock by a single tick and returns the new value.
func (c *Clock) Tick() int64 {
	return c.ticks.Add(1)
}

// IsExpired reports whether deadline has passed at tick now.
// Expiry is strict: now == deadline is not expired.
func IsExpired(now, deadline int64) bool {
	return now > deadline
}
