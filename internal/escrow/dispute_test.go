package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-dev/custodia/internal/events"
)

func TestInitiateDispute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	d, err := f.svc.InitiateDispute(ctx, payer, e.ID, "service not delivered")
	if err != nil {
		t.Fatalf("InitiateDispute failed: %v", err)
	}
	if d.InitiatedBy != payer || d.Reason != "service not delivered" || d.Resolved {
		t.Errorf("Dispute = %+v, want unresolved, initiated by payer", d)
	}

	status, _ := f.svc.StatusOf(ctx, e.ID)
	if status != StatusDisputed {
		t.Errorf("Status = %s, want disputed", status)
	}
}

func TestInitiateDispute_ByPayee(t *testing.T) {
	f := newFixture(t)
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(context.Background(), payee, e.ID, "payer unreachable"); err != nil {
		t.Errorf("Dispute by payee failed: %v", err)
	}
}

func TestInitiateDispute_EmptyReason(t *testing.T) {
	f := newFixture(t)
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	for _, reason := range []string{"", "   "} {
		if _, err := f.svc.InitiateDispute(context.Background(), payer, e.ID, reason); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Dispute with reason %q = %v, want ErrInvalidInput", reason, err)
		}
	}
}

func TestInitiateDispute_Stranger(t *testing.T) {
	f := newFixture(t)
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(context.Background(), stranger, e.ID, "no relation"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Dispute by stranger = %v, want ErrUnauthorized", err)
	}
}

func TestInitiateDispute_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "first"); err != nil {
		t.Fatalf("first dispute: %v", err)
	}
	if _, err := f.svc.InitiateDispute(ctx, payee, e.ID, "second"); !errors.Is(err, ErrInvalidState) {
		// A disputed escrow fails the status check before the
		// one-dispute-per-escrow check.
		t.Errorf("Second dispute = %v, want ErrInvalidState", err)
	}
}

func TestInitiateDispute_SettledEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.Release(ctx, payer, e.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "too late"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Dispute on released escrow = %v, want ErrInvalidState", err)
	}
}

func TestDisputedEscrow_FrozenForParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "frozen"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	if _, err := f.svc.Release(ctx, payer, e.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Release of disputed escrow = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.Refund(ctx, payee, e.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Refund of disputed escrow = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.Cancel(ctx, payee, e.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Cancel of disputed escrow = %v, want ErrInvalidState", err)
	}
}

func TestResolveDispute_FavorPayee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100_000)
	e := f.lock(t, 100_000)

	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "quality"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	got, err := f.svc.ResolveDispute(ctx, owner, e.ID, FavorPayee)
	if err != nil {
		t.Fatalf("ResolveDispute failed: %v", err)
	}
	if got.Status != StatusReleased {
		t.Errorf("Status = %s, want released", got.Status)
	}

	// Standard fee split applies when the payee prevails.
	payeeBal, _ := f.ledger.GetBalance(ctx, payee)
	feeBal, _ := f.ledger.GetBalance(ctx, feeRecipient)
	if payeeBal.Available != 98_000 || feeBal.Available != 2_000 {
		t.Errorf("Split = payee %d / fee %d, want 98000/2000", payeeBal.Available, feeBal.Available)
	}

	d, _ := f.svc.GetDispute(ctx, e.ID)
	if !d.Resolved || d.Resolution != FavorPayee {
		t.Errorf("Dispute record = %+v, want resolved favor_payee", d)
	}

	evts := f.journal.ByEscrow(e.ID)
	if len(evts) != 1 || evts[0].Outcome != events.OutcomeFavorPayee || evts[0].FeeAmount != 2_000 {
		t.Errorf("Events = %+v, want one favor_payee event with fee 2000", evts)
	}
}

func TestResolveDispute_FavorPayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100_000)
	e := f.lock(t, 100_000)

	if _, err := f.svc.InitiateDispute(ctx, payee, e.ID, "mutual"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	got, err := f.svc.ResolveDispute(ctx, owner, e.ID, FavorPayer)
	if err != nil {
		t.Fatalf("ResolveDispute failed: %v", err)
	}
	if got.Status != StatusRefunded {
		t.Errorf("Status = %s, want refunded", got.Status)
	}

	// Full refund, no fee withheld.
	payerBal, _ := f.ledger.GetBalance(ctx, payer)
	feeBal, _ := f.ledger.GetBalance(ctx, feeRecipient)
	if payerBal.Available != 100_000 || feeBal.Available != 0 {
		t.Errorf("Balances = payer %d / fee %d, want 100000/0", payerBal.Available, feeBal.Available)
	}

	evts := f.journal.ByEscrow(e.ID)
	if len(evts) != 1 || evts[0].Outcome != events.OutcomeFavorPayer || evts[0].FeeAmount != 0 {
		t.Errorf("Events = %+v, want one favor_payer event with zero fee", evts)
	}
}

func TestResolveDispute_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "contested"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	for _, caller := range []string{payer, payee, stranger} {
		if _, err := f.svc.ResolveDispute(ctx, caller, e.ID, FavorPayer); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Resolve by %s = %v, want ErrUnauthorized", caller, err)
		}
	}
}

func TestResolveDispute_InvalidResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "contested"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	for _, res := range []Resolution{"", "split", "partial_refund"} {
		if _, err := f.svc.ResolveDispute(ctx, owner, e.ID, res); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidInput", res, err)
		}
	}
}

func TestResolveDispute_NotDisputed(t *testing.T) {
	f := newFixture(t)
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.ResolveDispute(context.Background(), owner, e.ID, FavorPayer); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Resolve of locked escrow = %v, want ErrInvalidState", err)
	}
}

func TestResolveDispute_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, payer, 100)
	e := f.lock(t, 100)

	if _, err := f.svc.InitiateDispute(ctx, payer, e.ID, "contested"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if _, err := f.svc.ResolveDispute(ctx, owner, e.ID, FavorPayer); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := f.svc.ResolveDispute(ctx, owner, e.ID, FavorPayee); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Second resolve = %v, want ErrInvalidState", err)
	}
}
