// Package escrow implements the custody state machine for service payments.
//
// Flow:
//  1. A payer locks funds for a payee → funds moved: available → escrowed
//  2. Payer releases → payee receives amount minus fee, fee goes to the
//     fee recipient
//  3. Payee refunds or cancels → payer receives the full amount back
//  4. Payer refunds after the timeout has expired → full amount back
//  5. Either party disputes → the contract owner arbitrates a binary
//     outcome (full refund or full release)
//
// Released, Refunded and Cancelled are terminal: a terminal record is
// never mutated again. Time is the logical tick counter from the clock
// package, never the wall clock.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/custodia-dev/custodia/internal/clock"
	"github.com/custodia-dev/custodia/internal/events"
	"github.com/custodia-dev/custodia/internal/fees"
	"github.com/custodia-dev/custodia/internal/metrics"
	"github.com/custodia-dev/custodia/internal/traces"
	"github.com/custodia-dev/custodia/internal/validation"
)

var (
	ErrNotFound        = errors.New("escrow not found")
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrInvalidState    = errors.New("invalid escrow status for this operation")
	ErrUnauthorized    = errors.New("not authorized for this escrow operation")
	ErrInvalidInput    = errors.New("invalid input")
	ErrZeroAmount      = errors.New("amount below minimum escrow amount")
	ErrSameParties     = errors.New("payer and payee cannot be the same principal")
	ErrAlreadyExists   = errors.New("dispute already exists for this escrow")
	ErrNotExpired      = errors.New("escrow timeout has not elapsed")
	ErrExpired         = errors.New("escrow timeout has elapsed")
	ErrTransferFailed  = errors.New("custody transfer failed")
)

// DefaultTimeoutPeriod is the lock-to-expiry window in logical ticks when
// the caller does not supply one.
const DefaultTimeoutPeriod = 2016

// Status represents the state of an escrow.
type Status string

const (
	StatusLocked    Status = "locked"    // funds held in custody
	StatusReleased  Status = "released"  // settled in favor of the payee
	StatusRefunded  Status = "refunded"  // returned to the payer
	StatusDisputed  Status = "disputed"  // awaiting owner arbitration
	StatusCancelled Status = "cancelled" // payee walked away, returned to payer
)

// Terminal returns true if the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// Resolution is the binary outcome of an arbitrated dispute.
type Resolution string

const (
	FavorPayer Resolution = "favor_payer" // full refund to payer
	FavorPayee Resolution = "favor_payee" // release to payee, fee applies
)

// Escrow represents one custody record. CreatedAt, TimeoutAt and
// ReleasedAt are logical ticks.
type Escrow struct {
	ID         uint64 `json:"id"`
	Payer      string `json:"payer"`
	Payee      string `json:"payee"`
	Amount     int64  `json:"amount"`
	FeeAmount  int64  `json:"feeAmount"`
	Status     Status `json:"status"`
	ServiceID  string `json:"serviceId,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	TimeoutAt  int64  `json:"timeoutAt"`
	ReleasedAt *int64 `json:"releasedAt,omitempty"`
}

// Dispute is the 1:1 arbitration record for a disputed escrow.
type Dispute struct {
	EscrowID    uint64     `json:"escrowId"`
	InitiatedBy string     `json:"initiatedBy"`
	InitiatedAt int64      `json:"initiatedAt"`
	Reason      string     `json:"reason"`
	Resolved    bool       `json:"resolved"`
	Resolution  Resolution `json:"resolution,omitempty"`
}

// Store persists escrow and dispute records. Implementations maintain the
// monotonic ID nonce, the per-party indices, and the total-value-locked
// counter inside the same atomic unit as the record mutation: CreateEscrow
// adds a locked escrow's amount to the counter, UpdateEscrow subtracts it
// on the transition into a terminal status, and a terminal record is
// rejected for further updates.
type Store interface {
	ReserveID(ctx context.Context) (uint64, error)
	CreateEscrow(ctx context.Context, e *Escrow) error
	GetEscrow(ctx context.Context, id uint64) (*Escrow, error)
	UpdateEscrow(ctx context.Context, e *Escrow) error
	ListByPayer(ctx context.Context, principal string, limit int) ([]*Escrow, error)
	ListByPayee(ctx context.Context, principal string, limit int) ([]*Escrow, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Escrow, error)
	CreateDispute(ctx context.Context, d *Dispute) error
	GetDispute(ctx context.Context, escrowID uint64) (*Dispute, error)
	UpdateDispute(ctx context.Context, d *Dispute) error
	TotalLocked(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// TransferExecutor moves value. Implemented by the ledger; the escrow
// service never touches balances directly.
type TransferExecutor interface {
	EscrowLock(ctx context.Context, payer string, amount int64, reference string) error
	EscrowRelease(ctx context.Context, payer, payee, feeRecipient string, amount, fee int64, reference string) error
	EscrowRefund(ctx context.Context, payer string, amount int64, reference string) error
}

// SettlementEmitter publishes settlement events for external consumers
// (reputation scoring and the like).
type SettlementEmitter interface {
	EmitSettlement(ctx context.Context, s events.Settlement)
}

// LockRequest contains the parameters for locking a new escrow.
// TimeoutPeriod is in logical ticks; zero means DefaultTimeoutPeriod.
type LockRequest struct {
	Payer         string `json:"payer"`
	Payee         string `json:"payee"`
	Amount        int64  `json:"amount"`
	ServiceID     string `json:"serviceId,omitempty"`
	TimeoutPeriod int64  `json:"timeoutPeriod,omitempty"`
}

// Params configures a new escrow service.
type Params struct {
	Owner                string
	FeeRecipient         string
	FeeBps               int64
	MinEscrowAmount      int64
	DefaultTimeoutPeriod int64
	Enabled              bool
}

// Service implements the escrow business logic.
type Service struct {
	store     Store
	transfers TransferExecutor
	clk       *clock.Clock
	fees      fees.Calculator
	emitter   SettlementEmitter
	logger    *slog.Logger
	locks     sync.Map // per-escrow ID locks serializing state transitions

	settingsMu     sync.RWMutex
	owner          string
	feeRecipient   string
	enabled        bool
	minAmount      int64
	defaultTimeout int64
}

// NewService creates a new escrow service.
func NewService(store Store, transfers TransferExecutor, clk *clock.Clock, p Params, logger *slog.Logger) *Service {
	if p.MinEscrowAmount < 1 {
		p.MinEscrowAmount = 1
	}
	if p.DefaultTimeoutPeriod < 1 {
		p.DefaultTimeoutPeriod = DefaultTimeoutPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:          store,
		transfers:      transfers,
		clk:            clk,
		fees:           fees.New(p.FeeBps),
		logger:         logger,
		owner:          validation.SanitizePrincipal(p.Owner),
		feeRecipient:   validation.SanitizePrincipal(p.FeeRecipient),
		enabled:        p.Enabled,
		minAmount:      p.MinEscrowAmount,
		defaultTimeout: p.DefaultTimeoutPeriod,
	}
}

// WithEmitter adds a settlement event emitter.
func (s *Service) WithEmitter(e SettlementEmitter) *Service {
	s.emitter = e
	return s
}

// escrowLock returns a mutex for the given escrow ID. This serializes
// state transitions on one record; operations on different records may
// proceed concurrently.
func (s *Service) escrowLock(id uint64) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func escrowRef(id uint64) string {
	return fmt.Sprintf("escrow:%d", id)
}

// Lock creates a new escrow and moves the payer's funds into custody.
// The debit and the record creation form one unit: a failed debit creates
// no record, and a failed record creation returns the debited funds.
func (s *Service) Lock(ctx context.Context, req LockRequest) (*Escrow, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.Lock",
		traces.Principal(req.Payer), traces.Amount(req.Amount))
	defer span.End()

	s.settingsMu.RLock()
	enabled := s.enabled
	minAmount := s.minAmount
	defaultTimeout := s.defaultTimeout
	s.settingsMu.RUnlock()

	if !enabled {
		return nil, fmt.Errorf("%w: escrow creation is disabled", ErrUnauthorized)
	}

	payer := validation.SanitizePrincipal(req.Payer)
	payee := validation.SanitizePrincipal(req.Payee)
	if errs := validation.Validate(
		validation.Required("payer", payer),
		validation.ValidPrincipal("payer", payer),
		validation.Required("payee", payee),
		validation.ValidPrincipal("payee", payee),
	); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, errs.Error())
	}
	if payer == payee {
		return nil, ErrSameParties
	}
	if req.Amount < minAmount {
		return nil, ErrZeroAmount
	}
	if req.Amount > fees.MaxAmount {
		return nil, fmt.Errorf("%w: amount exceeds maximum", ErrInvalidInput)
	}
	timeout := req.TimeoutPeriod
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeout < 1 {
		return nil, fmt.Errorf("%w: timeout period must be positive", ErrInvalidInput)
	}

	id, err := s.store.ReserveID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve escrow id: %w", err)
	}

	now := s.clk.Now()
	e := &Escrow{
		ID:        id,
		Payer:     payer,
		Payee:     payee,
		Amount:    req.Amount,
		FeeAmount: s.fees.Fee(req.Amount),
		Status:    StatusLocked,
		ServiceID: validation.SanitizeString(req.ServiceID, 256),
		CreatedAt: now,
		TimeoutAt: now + timeout,
	}

	// Move payer funds into custody before the record exists; a failed
	// debit must leave no trace.
	if err := s.transfers.EscrowLock(ctx, payer, e.Amount, escrowRef(id)); err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("lock", "error").Inc()
		return nil, fmt.Errorf("lock escrow funds: %w", err)
	}

	if err := s.store.CreateEscrow(ctx, e); err != nil {
		// Compensate: return the debited funds.
		_ = s.transfers.EscrowRefund(ctx, payer, e.Amount, escrowRef(id))
		metrics.EscrowOpsTotal.WithLabelValues("lock", "error").Inc()
		return nil, fmt.Errorf("create escrow record: %w", err)
	}

	metrics.EscrowOpsTotal.WithLabelValues("lock", "ok").Inc()
	metrics.EscrowsByStatus.WithLabelValues(string(StatusLocked)).Inc()
	metrics.TotalValueLocked.Add(float64(e.Amount))
	s.logger.Info("escrow locked",
		"escrow_id", e.ID, "payer", payer, "payee", payee,
		"amount", e.Amount, "fee", e.FeeAmount, "timeout_at", e.TimeoutAt)

	return e, nil
}

// Release settles the escrow in favor of the payee. Only the payer may
// release; the payee receives amount minus fee and the fee recipient
// receives the fee.
func (s *Service) Release(ctx context.Context, caller string, id uint64) (*Escrow, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.Release",
		traces.EscrowID(id), traces.Principal(caller))
	defer span.End()

	mu := s.escrowLock(id)
	mu.Lock()
	defer mu.Unlock()

	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if err := authorize(validation.SanitizePrincipal(caller), e, OpRelease, now, s.ownerNow()); err != nil {
		return nil, err
	}

	if err := s.transfers.EscrowRelease(ctx, e.Payer, e.Payee, s.feeRecipientNow(), e.Amount, e.FeeAmount, escrowRef(id)); err != nil {
		metrics.EscrowOpsTotal.WithLabelValues("release", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.Status = StatusReleased
	e.ReleasedAt = &now
	if err := s.commitSettled(ctx, e, "release"); err != nil {
		return nil, err
	}

	metrics.EscrowOpsTotal.WithLabelValues("release", "ok").Inc()
	s.observeTerminal(e, now)
	s.emit(ctx, e, events.OutcomeReleased, e.FeeAmount)
	s.logger.Info("escrow released",
		"escrow_id", e.ID, "payee", e.Payee, "net", e.Amount-e.FeeAmount, "fee", e.FeeAmount)

	return e, nil
}

// Refund returns the full escrowed amount to the payer, with no fee.
// The payee and the contract owner may refund at any time; the payer may
// refund only after the timeout has expired.
func (s *Service) Refund(ctx context.Context, caller string, id uint64) (*Escrow, error) {
	return s.returnToPayer(ctx, caller, id, OpRefund, StatusRefunded, events.OutcomeRefunded)
}

// Cancel returns the full escrowed amount to the payer with a distinct
// terminal status for audit consumers. Only the payee may cancel.
func (s *Service) Cancel(ctx context.Context, caller string, id uint64) (*Escrow, error) {
	return s.returnToPayer(ctx, caller, id, OpCancel, StatusCancelled, events.OutcomeCancelled)
}

// returnToPayer implements refund and cancel, which differ only in
// authorization and resulting status.
func (s *Service) returnToPayer(ctx context.Context, caller string, id uint64, op Operation, status Status, outcome events.Outcome) (*Escrow, error) {
	ctx, span := traces.StartSpan(ctx, "escrow."+string(op),
		traces.EscrowID(id), traces.Principal(caller))
	defer span.End()

	mu := s.escrowLock(id)
	mu.Lock()
	defer mu.Unlock()

	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if err := authorize(validation.SanitizePrincipal(caller), e, op, now, s.ownerNow()); err != nil {
		return nil, err
	}

	if err := s.transfers.EscrowRefund(ctx, e.Payer, e.Amount, escrowRef(id)); err != nil {
		metrics.EscrowOpsTotal.WithLabelValues(string(op), "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.Status = status
	e.ReleasedAt = &now
	if err := s.store.UpdateEscrow(ctx, e); err != nil {
		// Compensate: put the refunded funds back into custody.
		_ = s.transfers.EscrowLock(ctx, e.Payer, e.Amount, escrowRef(id))
		metrics.EscrowOpsTotal.WithLabelValues(string(op), "error").Inc()
		return nil, fmt.Errorf("update escrow after %s: %w", op, err)
	}

	metrics.EscrowOpsTotal.WithLabelValues(string(op), "ok").Inc()
	s.observeTerminal(e, now)
	s.emit(ctx, e, outcome, 0)
	s.logger.Info("escrow returned to payer",
		"escrow_id", e.ID, "status", e.Status, "payer", e.Payer, "amount", e.Amount)

	return e, nil
}

// commitSettled persists a terminal transition whose funds have already
// moved to the payee. There is no inverse for the fee split, so a failed
// update is retried once and then escalated for manual resolution.
func (s *Service) commitSettled(ctx context.Context, e *Escrow, op string) error {
	if err := s.store.UpdateEscrow(ctx, e); err != nil {
		if retryErr := s.store.UpdateEscrow(ctx, e); retryErr != nil {
			metrics.EscrowOpsTotal.WithLabelValues(op, "error").Inc()
			s.logger.Error("CRITICAL: escrow funds settled but status update failed",
				"escrow_id", e.ID, "payee", e.Payee, "error", retryErr)
			return fmt.Errorf("update escrow after %s (requires manual resolution): %w", op, err)
		}
	}
	return nil
}

func (s *Service) observeTerminal(e *Escrow, now int64) {
	metrics.EscrowsByStatus.WithLabelValues(string(e.Status)).Inc()
	metrics.TotalValueLocked.Sub(float64(e.Amount))
	metrics.EscrowLifetimeTicks.Observe(float64(now - e.CreatedAt))
}

func (s *Service) emit(ctx context.Context, e *Escrow, outcome events.Outcome, fee int64) {
	if s.emitter == nil {
		return
	}
	s.emitter.EmitSettlement(ctx, events.Settlement{
		EscrowID:  e.ID,
		Payer:     e.Payer,
		Payee:     e.Payee,
		Amount:    e.Amount,
		FeeAmount: fee,
		Outcome:   outcome,
	})
}

func (s *Service) ownerNow() string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.owner
}

func (s *Service) feeRecipientNow() string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.feeRecipient
}
