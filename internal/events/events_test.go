package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
)

func TestEmitter_FanOut(t *testing.T) {
	e := NewEmitter(slog.Default())

	var mu sync.Mutex
	var got []*Settlement
	e.Subscribe(SubscriberFunc(func(_ context.Context, s *Settlement) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
		return nil
	}))

	e.EmitSettlement(context.Background(), Settlement{
		EscrowID:  3,
		Payer:     "0xpayer",
		Payee:     "0xpayee",
		Amount:    100_000,
		FeeAmount: 2_000,
		Outcome:   OutcomeReleased,
	})

	if len(got) != 1 {
		t.Fatalf("Expected 1 delivered event, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Error("Expected emitter to stamp an event ID")
	}
	if got[0].EmittedAt.IsZero() {
		t.Error("Expected emitter to stamp EmittedAt")
	}
	if got[0].Outcome != OutcomeReleased {
		t.Errorf("Outcome = %s, want %s", got[0].Outcome, OutcomeReleased)
	}
}

func TestEmitter_SubscriberErrorDoesNotPropagate(t *testing.T) {
	e := NewEmitter(slog.Default())
	e.Subscribe(SubscriberFunc(func(context.Context, *Settlement) error {
		return errors.New("consumer down")
	}))

	var delivered bool
	e.Subscribe(SubscriberFunc(func(context.Context, *Settlement) error {
		delivered = true
		return nil
	}))

	// Must not panic and must still reach the second subscriber.
	e.EmitSettlement(context.Background(), Settlement{EscrowID: 1, Outcome: OutcomeRefunded})
	if !delivered {
		t.Error("Expected delivery to continue past a failing subscriber")
	}
}

func TestJournal_RetainsNewestFirst(t *testing.T) {
	j := NewJournal(10)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		if err := j.HandleSettlement(ctx, &Settlement{EscrowID: i, Outcome: OutcomeReleased}); err != nil {
			t.Fatalf("HandleSettlement: %v", err)
		}
	}

	recent := j.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d events", len(recent))
	}
	if recent[0].EscrowID != 3 || recent[1].EscrowID != 2 {
		t.Errorf("Expected newest-first ordering, got %d, %d", recent[0].EscrowID, recent[1].EscrowID)
	}
}

func TestJournal_BoundedRetention(t *testing.T) {
	j := NewJournal(2)
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		_ = j.HandleSettlement(ctx, &Settlement{EscrowID: i})
	}
	if got := len(j.Recent(0)); got != 2 {
		t.Errorf("Expected retention cap of 2, got %d", got)
	}
}

func TestJournal_ByEscrow(t *testing.T) {
	j := NewJournal(10)
	ctx := context.Background()
	_ = j.HandleSettlement(ctx, &Settlement{EscrowID: 1, Outcome: OutcomeCancelled})
	_ = j.HandleSettlement(ctx, &Settlement{EscrowID: 2, Outcome: OutcomeReleased})
	_ = j.HandleSettlement(ctx, &Settlement{EscrowID: 1, Outcome: OutcomeFavorPayer})

	got := j.ByEscrow(1)
	if len(got) != 2 {
		t.Fatalf("ByEscrow(1) returned %d events, want 2", len(got))
	}
	if got[0].Outcome != OutcomeFavorPayer {
		t.Errorf("Expected newest event first, got %s", got[0].Outcome)
	}
}
