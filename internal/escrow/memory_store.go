package escrow

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory escrow store for tests and development.
// The ID nonce, the per-party indices and the total-value-locked counter
// are maintained under the same mutex as the records, so every method is
// one atomic unit.
type MemoryStore struct {
	mu          sync.RWMutex
	escrows     map[uint64]*Escrow
	disputes    map[uint64]*Dispute
	byPayer     map[string][]uint64
	byPayee     map[string][]uint64
	nonce       uint64
	totalLocked int64
}

// NewMemoryStore creates a new in-memory escrow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		escrows:  make(map[uint64]*Escrow),
		disputes: make(map[uint64]*Dispute),
		byPayer:  make(map[string][]uint64),
		byPayee:  make(map[string][]uint64),
	}
}

// ReserveID hands out the next escrow ID. The nonce only ever advances,
// even when the escrow it was reserved for is never created.
func (m *MemoryStore) ReserveID(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nonce
	m.nonce++
	return id, nil
}

func (m *MemoryStore) CreateEscrow(ctx context.Context, e *Escrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.escrows[e.ID]; exists {
		return fmt.Errorf("escrow %d already exists", e.ID)
	}
	cp := *e
	m.escrows[e.ID] = &cp
	m.byPayer[e.Payer] = append(m.byPayer[e.Payer], e.ID)
	m.byPayee[e.Payee] = append(m.byPayee[e.Payee], e.ID)
	if e.Status == StatusLocked {
		m.totalLocked += e.Amount
	}
	return nil
}

func (m *MemoryStore) GetEscrow(ctx context.Context, id uint64) (*Escrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.escrows[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) UpdateEscrow(ctx context.Context, e *Escrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.escrows[e.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, e.ID)
	}
	if old.Status.Terminal() {
		return fmt.Errorf("%w: escrow %d is already %s", ErrInvalidState, e.ID, old.Status)
	}
	if !old.Status.Terminal() && e.Status.Terminal() {
		m.totalLocked -= e.Amount
	}
	cp := *e
	m.escrows[e.ID] = &cp
	return nil
}

func (m *MemoryStore) listIDs(ids []uint64, limit int) []*Escrow {
	result := make([]*Escrow, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(result) < limit; i-- {
		if e, ok := m.escrows[ids[i]]; ok {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result
}

func (m *MemoryStore) ListByPayer(ctx context.Context, principal string, limit int) ([]*Escrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIDs(m.byPayer[principal], limit), nil
}

func (m *MemoryStore) ListByPayee(ctx context.Context, principal string, limit int) ([]*Escrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIDs(m.byPayee[principal], limit), nil
}

func (m *MemoryStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Escrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// IDs are assigned in creation order, so walking the nonce range
	// backwards yields newest-first.
	result := make([]*Escrow, 0, limit)
	for id := m.nonce; id > 0 && len(result) < limit; id-- {
		if e, ok := m.escrows[id-1]; ok && e.Status == status {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) CreateDispute(ctx context.Context, d *Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.disputes[d.EscrowID]; exists {
		return ErrAlreadyExists
	}
	cp := *d
	m.disputes[d.EscrowID] = &cp
	return nil
}

func (m *MemoryStore) GetDispute(ctx context.Context, escrowID uint64) (*Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.disputes[escrowID]
	if !ok {
		return nil, fmt.Errorf("%w: escrow %d", ErrDisputeNotFound, escrowID)
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpdateDispute(ctx context.Context, d *Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.disputes[d.EscrowID]
	if !ok {
		return fmt.Errorf("%w: escrow %d", ErrDisputeNotFound, d.EscrowID)
	}
	if old.Resolved {
		return fmt.Errorf("%w: dispute for escrow %d is already resolved", ErrInvalidState, d.EscrowID)
	}
	cp := *d
	m.disputes[d.EscrowID] = &cp
	return nil
}

func (m *MemoryStore) TotalLocked(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalLocked, nil
}

func (m *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Status]int64)
	for _, e := range m.escrows {
		counts[e.Status]++
	}
	return counts, nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
