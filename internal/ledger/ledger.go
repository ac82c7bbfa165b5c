// Package ledger tracks principal balances and executes all value
// movement for the custody engine.
//
// Funds live in one of two positions per principal: available (spendable)
// or escrowed (held in custody, attributed to the paying principal until
// settlement). Every movement appends an immutable journal entry; the
// journal can be replayed to rebuild and reconcile balances.
//
// No component outside this package moves value. The escrow service calls
// the three Escrow* operations; each is atomic within the backing store,
// so a failed movement leaves every balance untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDuplicateDeposit    = errors.New("deposit already processed")
)

// Journal entry types.
const (
	EntryDeposit       = "deposit"
	EntryWithdrawal    = "withdrawal"
	EntryEscrowLock    = "escrow_lock"    // payer: available -> escrowed
	EntryEscrowRelease = "escrow_release" // payer: escrowed -> out
	EntryEscrowReceive = "escrow_receive" // payee: settlement net in
	EntryEscrowRefund  = "escrow_refund"  // payer: escrowed -> available
	EntryFeeIn         = "fee_in"         // fee recipient: settlement fee in
)

// Entry is an immutable journal record of one balance movement.
type Entry struct {
	ID           string    `json:"id"`
	Principal    string    `json:"principal"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	Reference    string    `json:"reference,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Balance is a principal's current position.
type Balance struct {
	Principal string    `json:"principal"`
	Available int64     `json:"available"`
	Escrowed  int64     `json:"escrowed"`
	TotalIn   int64     `json:"totalIn"`
	TotalOut  int64     `json:"totalOut"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists balances and the journal. Every mutating method is a
// single atomic unit: all balance changes and journal appends it implies
// either all commit or none do.
type Store interface {
	GetBalance(ctx context.Context, principal string) (*Balance, error)
	Deposit(ctx context.Context, principal string, amount int64, reference string) error
	Withdraw(ctx context.Context, principal string, amount int64, reference string) error
	EscrowLock(ctx context.Context, payer string, amount int64, reference string) error
	EscrowRelease(ctx context.Context, payer, payee, feeRecipient string, amount, fee int64, reference string) error
	EscrowRefund(ctx context.Context, payer string, amount int64, reference string) error
	History(ctx context.Context, principal string, limit int) ([]*Entry, error)
	Entries(ctx context.Context, principal string) ([]*Entry, error)
	Principals(ctx context.Context) ([]string, error)
	HasDeposit(ctx context.Context, reference string) (bool, error)
}

// Ledger manages principal balances on top of a Store.
type Ledger struct {
	store Store
}

// New creates a new ledger.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// GetBalance returns a principal's current balance.
func (l *Ledger) GetBalance(ctx context.Context, principal string) (*Balance, error) {
	return l.store.GetBalance(ctx, principal)
}

// Deposit credits a principal's available balance. Reference deduplicates
// retried deposits.
func (l *Ledger) Deposit(ctx context.Context, principal string, amount int64, reference string) error {
	defer observeOp("deposit")()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	exists, err := l.store.HasDeposit(ctx, reference)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateDeposit
	}
	return l.store.Deposit(ctx, principal, amount, reference)
}

// Withdraw debits a principal's available balance.
func (l *Ledger) Withdraw(ctx context.Context, principal string, amount int64, reference string) error {
	defer observeOp("withdraw")()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Withdraw(ctx, principal, amount, reference)
}

// EscrowLock moves amount from the payer's available balance into custody.
func (l *Ledger) EscrowLock(ctx context.Context, payer string, amount int64, reference string) error {
	defer observeOp("escrow_lock")()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.EscrowLock(ctx, payer, amount, reference)
}

// EscrowRelease settles custody in favor of the payee: the payer's
// escrowed amount is drained, the payee receives amount-fee, and the fee
// recipient receives the fee (skipped when zero).
func (l *Ledger) EscrowRelease(ctx context.Context, payer, payee, feeRecipient string, amount, fee int64, reference string) error {
	defer observeOp("escrow_release")()
	if amount <= 0 || fee < 0 || fee > amount {
		return ErrInvalidAmount
	}
	if fee > 0 && feeRecipient == "" {
		return fmt.Errorf("escrow release %s: no fee recipient for fee %d", reference, fee)
	}
	return l.store.EscrowRelease(ctx, payer, payee, feeRecipient, amount, fee, reference)
}

// EscrowRefund returns the full escrowed amount to the payer. Refunds
// never carry a fee.
func (l *Ledger) EscrowRefund(ctx context.Context, payer string, amount int64, reference string) error {
	defer observeOp("escrow_refund")()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.EscrowRefund(ctx, payer, amount, reference)
}

// History returns recent journal entries for a principal, newest first.
func (l *Ledger) History(ctx context.Context, principal string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.History(ctx, principal, limit)
}

// CanLock reports whether a principal has enough available balance to
// fund an escrow of the given amount.
func (l *Ledger) CanLock(ctx context.Context, principal string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	bal, err := l.store.GetBalance(ctx, principal)
	if err != nil {
		return false, err
	}
	return bal.Available >= amount, nil
}
