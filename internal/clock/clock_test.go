package clock

import (
	"sync"
	"testing"
)

func TestClock_StartsAtZero(t *testing.T) {
	c := New()
	if got := c.Now(); got != 0 {
		t.Errorf("Expected new clock at tick 0, got %d", got)
	}
}

func TestClock_Advance(t *testing.T) {
	c := New()
	if got := c.Advance(5); got != 5 {
		t.Errorf("Advance(5) = %d, want 5", got)
	}
	if got := c.Advance(10); got != 15 {
		t.Errorf("Advance(10) = %d, want 15", got)
	}
}

func TestClock_AdvanceNeverMovesBackwards(t *testing.T) {
	c := NewAt(100)
	if got := c.Advance(-7); got != 100 {
		t.Errorf("Advance(-7) = %d, want 100", got)
	}
	if got := c.Advance(0); got != 100 {
		t.Errorf("Advance(0) = %d, want 100", got)
	}
}

func TestClock_Tick(t *testing.T) {
	c := NewAt(41)
	if got := c.Tick(); got != 42 {
		t.Errorf("Tick() = %d, want 42", got)
	}
}

func TestClock_ConcurrentAdvance(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Tick()
		}()
	}
	wg.Wait()
	if got := c.Now(); got != 100 {
		t.Errorf("Expected 100 ticks after 100 concurrent Tick calls, got %d", got)
	}
}

func TestIsExpired_StrictlyGreaterThan(t *testing.T) {
	tests := []struct {
		name     string
		now      int64
		deadline int64
		want     bool
	}{
		{"before deadline", 5, 10, false},
		{"exactly at deadline", 10, 10, false},
		{"one past deadline", 11, 10, true},
		{"well past deadline", 100, 10, true},
		{"zero deadline at zero", 0, 0, false},
		{"zero deadline at one", 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(tt.now, tt.deadline); got != tt.want {
				t.Errorf("IsExpired(%d, %d) = %v, want %v", tt.now, tt.deadline, got, tt.want)
			}
		})
	}
}
