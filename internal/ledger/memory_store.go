package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-dev/custodia/internal/idgen"
)

// MemoryStore is an in-memory ledger store for tests and development.
// A single mutex guards balances and journal together, so every mutating
// method is one atomic unit.
type MemoryStore struct {
	mu       sync.RWMutex
	balances map[string]*Balance
	entries  []*Entry
	deposits map[string]bool
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*Balance),
		deposits: make(map[string]bool),
	}
}

func (m *MemoryStore) account(principal string) *Balance {
	bal, ok := m.balances[principal]
	if !ok {
		bal = &Balance{Principal: principal}
		m.balances[principal] = bal
	}
	return bal
}

func (m *MemoryStore) append(principal, entryType string, amount int64, reference, counterparty string) {
	m.entries = append(m.entries, &Entry{
		ID:           idgen.WithPrefix("je_"),
		Principal:    principal,
		Type:         entryType,
		Amount:       amount,
		Reference:    reference,
		Counterparty: counterparty,
		CreatedAt:    time.Now(),
	})
}

func (m *MemoryStore) GetBalance(ctx context.Context, principal string) (*Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if bal, ok := m.balances[principal]; ok {
		cp := *bal
		return &cp, nil
	}
	return &Balance{Principal: principal}, nil
}

func (m *MemoryStore) Deposit(ctx context.Context, principal string, amount int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.account(principal)
	bal.Available += amount
	bal.TotalIn += amount
	bal.UpdatedAt = time.Now()
	m.append(principal, EntryDeposit, amount, reference, "")
	m.deposits[reference] = true
	return nil
}

func (m *MemoryStore) Withdraw(ctx context.Context, principal string, amount int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.account(principal)
	if bal.Available < amount {
		return ErrInsufficientBalance
	}
	bal.Available -= amount
	bal.TotalOut += amount
	bal.UpdatedAt = time.Now()
	m.append(principal, EntryWithdrawal, amount, reference, "")
	return nil
}

func (m *MemoryStore) EscrowLock(ctx context.Context, payer string, amount int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.account(payer)
	if bal.Available < amount {
		return ErrInsufficientBalance
	}
	bal.Available -= amount
	bal.Escrowed += amount
	bal.UpdatedAt = time.Now()
	m.append(payer, EntryEscrowLock, amount, reference, "")
	return nil
}

func (m *MemoryStore) EscrowRelease(ctx context.Context, payer, payee, feeRecipient string, amount, fee int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	payerBal := m.account(payer)
	if payerBal.Escrowed < amount {
		return ErrInsufficientBalance
	}
	now := time.Now()
	net := amount - fee

	payerBal.Escrowed -= amount
	payerBal.TotalOut += amount
	payerBal.UpdatedAt = now
	m.append(payer, EntryEscrowRelease, amount, reference, payee)

	payeeBal := m.account(payee)
	payeeBal.Available += net
	payeeBal.TotalIn += net
	payeeBal.UpdatedAt = now
	m.append(payee, EntryEscrowReceive, net, reference, payer)

	if fee > 0 {
		feeBal := m.account(feeRecipient)
		feeBal.Available += fee
		feeBal.TotalIn += fee
		feeBal.UpdatedAt = now
		m.append(feeRecipient, EntryFeeIn, fee, reference, payer)
	}
	return nil
}

func (m *MemoryStore) EscrowRefund(ctx context.Context, payer string, amount int64, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.account(payer)
	if bal.Escrowed < amount {
		return ErrInsufficientBalance
	}
	bal.Escrowed -= amount
	bal.Available += amount
	bal.UpdatedAt = time.Now()
	m.append(payer, EntryEscrowRefund, amount, reference, "")
	return nil
}

func (m *MemoryStore) History(ctx context.Context, principal string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Principal == principal {
			cp := *m.entries[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) Entries(ctx context.Context, principal string) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for _, e := range m.entries {
		if e.Principal == principal {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) Principals(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.balances))
	for p := range m.balances {
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryStore) HasDeposit(ctx context.Context, reference string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deposits[reference], nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
