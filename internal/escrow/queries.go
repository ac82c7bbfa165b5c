package escrow

import (
	"context"

	"github.com/custodia-dev/custodia/internal/clock"
	"github.com/custodia-dev/custodia/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// Get returns the escrow with the given ID.
func (s *Service) Get(ctx context.Context, id uint64) (*Escrow, error) {
	return s.store.GetEscrow(ctx, id)
}

// GetDispute returns the dispute record for an escrow, if one exists.
func (s *Service) GetDispute(ctx context.Context, id uint64) (*Dispute, error) {
	return s.store.GetDispute(ctx, id)
}

// StatusOf returns the current status of an escrow.
func (s *Service) StatusOf(ctx context.Context, id uint64) (Status, error) {
	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return "", err
	}
	return e.Status, nil
}

// IsExpired reports whether the escrow's timeout has elapsed at the
// current tick. An escrow at exactly its timeout tick is not expired.
func (s *Service) IsExpired(ctx context.Context, id uint64) (bool, error) {
	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return false, err
	}
	return clock.IsExpired(s.clk.Now(), e.TimeoutAt), nil
}

// CalculateFee returns the fee that would be charged on release of the
// given amount at the current rate.
func (s *Service) CalculateFee(amount int64) int64 {
	return s.fees.Fee(amount)
}

// Now returns the current logical tick.
func (s *Service) Now() int64 {
	return s.clk.Now()
}

// ListByPayer returns escrows where the principal is the payer,
// newest first.
func (s *Service) ListByPayer(ctx context.Context, principal string, limit int) ([]*Escrow, error) {
	return s.store.ListByPayer(ctx, validation.SanitizePrincipal(principal), clampLimit(limit))
}

// ListByPayee returns escrows where the principal is the payee,
// newest first.
func (s *Service) ListByPayee(ctx context.Context, principal string, limit int) ([]*Escrow, error) {
	return s.store.ListByPayee(ctx, validation.SanitizePrincipal(principal), clampLimit(limit))
}

// ListByStatus returns escrows in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Escrow, error) {
	return s.store.ListByStatus(ctx, status, clampLimit(limit))
}

// TotalValueLocked returns the sum of amounts held in open escrows
// (locked or disputed) as maintained by the store.
func (s *Service) TotalValueLocked(ctx context.Context) (int64, error) {
	return s.store.TotalLocked(ctx)
}

// Stats summarizes the escrow population.
type Stats struct {
	ByStatus         map[Status]int64 `json:"byStatus"`
	TotalValueLocked int64            `json:"totalValueLocked"`
	OpenCount        int64            `json:"openCount"`
	SettledCount     int64            `json:"settledCount"`
}

// Stats returns aggregate counts and the total value locked.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	tvl, err := s.store.TotalLocked(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		ByStatus:         counts,
		TotalValueLocked: tvl,
		OpenCount:        counts[StatusLocked] + counts[StatusDisputed],
		SettledCount:     counts[StatusReleased] + counts[StatusRefunded] + counts[StatusCancelled],
	}, nil
}
