// Package events distributes custody lifecycle events to external
// consumers, such as the reputation module. The engine only produces
// events; it never calls into consumer logic directly.
package events

import (
	"context"
	"time"
)

// Outcome identifies how an escrow left custody.
type Outcome string

const (
	OutcomeReleased   Outcome = "released"
	OutcomeRefunded   Outcome = "refunded"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeFavorPayer Outcome = "dispute_favor_payer"
	OutcomeFavorPayee Outcome = "dispute_favor_payee"
)

// Settlement describes a terminal escrow transition or a dispute
// resolution. FeeAmount is zero for refunds and cancellations.
type Settlement struct {
	ID        string    `json:"id"`
	EscrowID  uint64    `json:"escrowId"`
	Payer     string    `json:"payer"`
	Payee     string    `json:"payee"`
	Amount    int64     `json:"amount"`
	FeeAmount int64     `json:"feeAmount"`
	Outcome   Outcome   `json:"outcome"`
	EmittedAt time.Time `json:"emittedAt"`
}

// Subscriber consumes settlement events.
type Subscriber interface {
	HandleSettlement(ctx context.Context, s *Settlement) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, s *Settlement) error

// HandleSettlement calls f(ctx, s).
func (f SubscriberFunc) HandleSettlement(ctx context.Context, s *Settlement) error {
	return f(ctx, s)
}
