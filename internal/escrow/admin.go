package escrow

import (
	"context"
	"fmt"

	"github.com/custodia-dev/custodia/internal/validation"
)

// Settings is a snapshot of the mutable service configuration.
type Settings struct {
	Owner                string `json:"owner"`
	FeeRecipient         string `json:"feeRecipient"`
	FeeBps               int64  `json:"feeBps"`
	MinEscrowAmount      int64  `json:"minEscrowAmount"`
	DefaultTimeoutPeriod int64  `json:"defaultTimeoutPeriod"`
	Enabled              bool   `json:"enabled"`
}

// Settings returns the current service settings.
func (s *Service) Settings() Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return Settings{
		Owner:                s.owner,
		FeeRecipient:         s.feeRecipient,
		FeeBps:               s.fees.Bps(),
		MinEscrowAmount:      s.minAmount,
		DefaultTimeoutPeriod: s.defaultTimeout,
		Enabled:              s.enabled,
	}
}

func (s *Service) requireOwner(caller string) error {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	if validation.SanitizePrincipal(caller) != s.owner {
		return fmt.Errorf("%w: owner-only operation", ErrUnauthorized)
	}
	return nil
}

// SetOwner transfers contract ownership. Owner only.
func (s *Service) SetOwner(ctx context.Context, caller, newOwner string) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	newOwner = validation.SanitizePrincipal(newOwner)
	if !validation.IsValidPrincipal(newOwner) {
		return fmt.Errorf("%w: new owner must be a valid principal", ErrInvalidInput)
	}

	s.settingsMu.Lock()
	old := s.owner
	s.owner = newOwner
	s.settingsMu.Unlock()

	s.logger.Info("contract owner changed", "old", old, "new", newOwner)
	return nil
}

// SetFeeRecipient changes where release fees are credited. Owner only.
func (s *Service) SetFeeRecipient(ctx context.Context, caller, recipient string) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	recipient = validation.SanitizePrincipal(recipient)
	if !validation.IsValidPrincipal(recipient) {
		return fmt.Errorf("%w: fee recipient must be a valid principal", ErrInvalidInput)
	}

	s.settingsMu.Lock()
	s.feeRecipient = recipient
	s.settingsMu.Unlock()

	s.logger.Info("fee recipient changed", "recipient", recipient)
	return nil
}

// SetEscrowsEnabled toggles new escrow creation. Owner only. Existing
// escrows settle normally while creation is disabled.
func (s *Service) SetEscrowsEnabled(ctx context.Context, caller string, enabled bool) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	s.settingsMu.Lock()
	s.enabled = enabled
	s.settingsMu.Unlock()

	s.logger.Info("escrow creation toggled", "enabled", enabled)
	return nil
}
