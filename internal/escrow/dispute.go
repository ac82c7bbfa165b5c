package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-dev/custodia/internal/events"
	"github.com/custodia-dev/custodia/internal/metrics"
	"github.com/custodia-dev/custodia/internal/traces"
	"github.com/custodia-dev/custodia/internal/validation"
)

// InitiateDispute freezes a locked escrow for owner arbitration. Either
// party may initiate; a non-empty reason is required, and an escrow holds
// at most one dispute for its lifetime.
func (s *Service) InitiateDispute(ctx context.Context, caller string, id uint64, reason string) (*Dispute, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.InitiateDispute",
		traces.EscrowID(id), traces.Principal(caller))
	defer span.End()

	reason = validation.SanitizeString(reason, validation.MaxReasonLength)
	if reason == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", ErrInvalidInput)
	}

	mu := s.escrowLock(id)
	mu.Lock()
	defer mu.Unlock()

	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	caller = validation.SanitizePrincipal(caller)
	if err := authorize(caller, e, OpDispute, now, s.ownerNow()); err != nil {
		return nil, err
	}

	if _, err := s.store.GetDispute(ctx, id); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrDisputeNotFound) {
		return nil, fmt.Errorf("check existing dispute: %w", err)
	}

	d := &Dispute{
		EscrowID:    id,
		InitiatedBy: caller,
		InitiatedAt: now,
		Reason:      reason,
	}
	if err := s.store.CreateDispute(ctx, d); err != nil {
		return nil, fmt.Errorf("create dispute: %w", err)
	}

	e.Status = StatusDisputed
	if err := s.store.UpdateEscrow(ctx, e); err != nil {
		if retryErr := s.store.UpdateEscrow(ctx, e); retryErr != nil {
			s.logger.Error("CRITICAL: dispute recorded but escrow status update failed",
				"escrow_id", id, "error", retryErr)
			return nil, fmt.Errorf("update escrow after dispute (requires manual resolution): %w", err)
		}
	}

	metrics.DisputesTotal.WithLabelValues("initiated").Inc()
	metrics.EscrowsByStatus.WithLabelValues(string(StatusDisputed)).Inc()
	s.logger.Info("escrow disputed",
		"escrow_id", id, "initiated_by", caller, "reason", reason)

	return d, nil
}

// ResolveDispute settles a disputed escrow by owner arbitration. The
// outcome is binary: FavorPayer refunds the full amount with no fee,
// FavorPayee releases with the standard fee split. Funds always move in
// the same call that marks the escrow terminal.
func (s *Service) ResolveDispute(ctx context.Context, caller string, id uint64, res Resolution) (*Escrow, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.ResolveDispute",
		traces.EscrowID(id), traces.Outcome(string(res)))
	defer span.End()

	if res != FavorPayer && res != FavorPayee {
		return nil, fmt.Errorf("%w: resolution must be %s or %s", ErrInvalidInput, FavorPayer, FavorPayee)
	}

	mu := s.escrowLock(id)
	mu.Lock()
	defer mu.Unlock()

	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if err := authorize(validation.SanitizePrincipal(caller), e, OpResolve, now, s.ownerNow()); err != nil {
		return nil, err
	}

	d, err := s.store.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Resolved {
		return nil, fmt.Errorf("%w: dispute already resolved", ErrInvalidState)
	}

	var outcome events.Outcome
	var feePaid int64
	switch res {
	case FavorPayee:
		if err := s.transfers.EscrowRelease(ctx, e.Payer, e.Payee, s.feeRecipientNow(), e.Amount, e.FeeAmount, escrowRef(id)); err != nil {
			metrics.EscrowOpsTotal.WithLabelValues("resolve", "error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		e.Status = StatusReleased
		outcome = events.OutcomeFavorPayee
		feePaid = e.FeeAmount
	case FavorPayer:
		if err := s.transfers.EscrowRefund(ctx, e.Payer, e.Amount, escrowRef(id)); err != nil {
			metrics.EscrowOpsTotal.WithLabelValues("resolve", "error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		e.Status = StatusRefunded
		outcome = events.OutcomeFavorPayer
	}
	e.ReleasedAt = &now

	if err := s.commitSettled(ctx, e, "resolve"); err != nil {
		return nil, err
	}

	d.Resolved = true
	d.Resolution = res
	if err := s.store.UpdateDispute(ctx, d); err != nil {
		// The escrow record is the source of truth for the outcome; a
		// stale dispute row only needs a followup, not a rollback.
		s.logger.Error("dispute record update failed after resolution",
			"escrow_id", id, "resolution", res, "error", err)
	}

	metrics.EscrowOpsTotal.WithLabelValues("resolve", "ok").Inc()
	metrics.DisputesTotal.WithLabelValues(string(res)).Inc()
	s.observeTerminal(e, now)
	s.emit(ctx, e, outcome, feePaid)
	s.logger.Info("dispute resolved",
		"escrow_id", id, "resolution", res, "status", e.Status)

	return e, nil
}
