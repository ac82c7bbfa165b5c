package escrow

import (
	"fmt"

	"github.com/custodia-dev/custodia/internal/clock"
	"github.com/custodia-dev/custodia/internal/validation"
)

// Operation names a state-changing escrow action for authorization checks.
type Operation string

const (
	OpRelease Operation = "release"
	OpRefund  Operation = "refund"
	OpCancel  Operation = "cancel"
	OpDispute Operation = "dispute"
	OpResolve Operation = "resolve"
)

// authorize checks whether caller may perform op on the escrow at logical
// tick now. It encodes the full transition table:
//
//	release: payer only, status locked
//	refund:  payee or owner any time, payer only after expiry, status locked
//	cancel:  payee only, status locked
//	dispute: payer or payee, status locked
//	resolve: owner only, status disputed
//
// Status is checked before identity so a caller probing a settled escrow
// learns only that it is settled.
func authorize(caller string, e *Escrow, op Operation, now int64, owner string) error {
	switch op {
	case OpRelease:
		if e.Status != StatusLocked {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.Status)
		}
		if caller != e.Payer {
			return fmt.Errorf("%w: only the payer may release", ErrUnauthorized)
		}
	case OpRefund:
		if e.Status != StatusLocked {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.Status)
		}
		switch caller {
		case e.Payee, owner:
			// Voluntary refund, allowed at any tick.
		case e.Payer:
			if !clock.IsExpired(now, e.TimeoutAt) {
				return fmt.Errorf("%w: refundable from tick %d", ErrNotExpired, e.TimeoutAt+1)
			}
		default:
			return fmt.Errorf("%w: caller is not a party to this escrow", ErrUnauthorized)
		}
	case OpCancel:
		if e.Status != StatusLocked {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.Status)
		}
		if caller != e.Payee {
			return fmt.Errorf("%w: only the payee may cancel", ErrUnauthorized)
		}
	case OpDispute:
		if e.Status != StatusLocked {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.Status)
		}
		if caller != e.Payer && caller != e.Payee {
			return fmt.Errorf("%w: only the payer or payee may dispute", ErrUnauthorized)
		}
	case OpResolve:
		if e.Status != StatusDisputed {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.Status)
		}
		if caller != owner {
			return fmt.Errorf("%w: only the contract owner may resolve disputes", ErrUnauthorized)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, op)
	}
	return nil
}

// Can reports whether caller may perform op on the escrow at tick now.
// Pure query: no state is read or written beyond the arguments.
func Can(caller string, e *Escrow, op Operation, now int64, owner string) bool {
	if e == nil {
		return false
	}
	return authorize(validation.SanitizePrincipal(caller), e, op, now, validation.SanitizePrincipal(owner)) == nil
}

// Can is the service-level form of the package Can helper, using the
// service's clock and configured owner.
func (s *Service) Can(caller string, e *Escrow, op Operation) bool {
	return Can(caller, e, op, s.clk.Now(), s.ownerNow())
}
