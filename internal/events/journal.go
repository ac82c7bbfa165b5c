package events

import (
	"context"
	"sync"
)

// Journal is a bounded in-memory subscriber that retains settlement
// events newest-first for audit reads.
type Journal struct {
	mu     sync.RWMutex
	events []*Settlement
	max    int
}

// NewJournal creates a journal retaining up to max events.
func NewJournal(max int) *Journal {
	if max <= 0 {
		max = 1000
	}
	return &Journal{max: max}
}

// HandleSettlement implements Subscriber.
func (j *Journal) HandleSettlement(_ context.Context, s *Settlement) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := *s
	j.events = append([]*Settlement{&cp}, j.events...)
	if len(j.events) > j.max {
		j.events = j.events[:j.max]
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) []*Settlement {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > len(j.events) {
		limit = len(j.events)
	}
	out := make([]*Settlement, limit)
	for i := 0; i < limit; i++ {
		cp := *j.events[i]
		out[i] = &cp
	}
	return out
}

// ByEscrow returns all retained events for one escrow, newest first.
func (j *Journal) ByEscrow(escrowID uint64) []*Settlement {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []*Settlement
	for _, s := range j.events {
		if s.EscrowID == escrowID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}
