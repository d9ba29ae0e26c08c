package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaturityPeriod = 7 * 24 * time.Hour
	defaultCommissionBps  = 200
	maxCommissionBps      = 10_000
)

// FundConfig holds the identities and policy constants of the fund. They are
// loaded once at start and injected into the workflows.
type FundConfig struct {
	// AuthorityKey is the hex encoded x-only schnorr public key allowed to run
	// privileged operations.
	AuthorityKey string `mapstructure:"authority-key"`
	// SettlementDenom identifies the settlement currency, e.g. "usdc".
	SettlementDenom string `mapstructure:"settlement-denom"`
	// HoldingAccount receives deposits and pays commissions.
	HoldingAccount string `mapstructure:"holding-account"`
	// CashoutAccount pays out completed withdrawals.
	CashoutAccount string `mapstructure:"cashout-account"`
	// FeeRecipient receives the performance fee.
	FeeRecipient      string        `mapstructure:"fee-recipient"`
	MaturityPeriod    time.Duration `mapstructure:"maturity-period"`
	CommissionBps     uint64        `mapstructure:"commission-bps"`
	MinUpdateInterval time.Duration `mapstructure:"min-update-interval"`
}

func (cfg *FundConfig) Validate() error {
	if cfg.AuthorityKey == "" {
		return errors.New("authority-key is required")
	}
	if cfg.SettlementDenom == "" {
		return errors.New("settlement-denom is required")
	}
	if cfg.HoldingAccount == "" {
		return errors.New("holding-account is required")
	}
	if cfg.CashoutAccount == "" {
		return errors.New("cashout-account is required")
	}
	if cfg.FeeRecipient == "" {
		return errors.New("fee-recipient is required")
	}
	if cfg.MaturityPeriod <= 0 {
		return errors.New("maturity-period must be positive")
	}
	if cfg.CommissionBps > maxCommissionBps {
		return fmt.Errorf("commission-bps must not exceed %d", maxCommissionBps)
	}
	if cfg.MinUpdateInterval < 0 {
		return errors.New("min-update-interval must not be negative")
	}

	return nil
}
