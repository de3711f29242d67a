package config

import (
	"fmt"

	"github.com/b0ase/libcustody-go/token"
)

// Validate checks that all pool configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func Validate(cfg PoolConfig) error {
	if cfg.CustodyAddress == "" {
		return ErrEmptyCustodyAddress
	}
	if cfg.FundingAddress == "" {
		return ErrEmptyFundingAddress
	}
	if cfg.Ticker == "" {
		return ErrEmptyTicker
	}
	if err := token.ValidateAddress(cfg.CustodyAddress, cfg.AddressVersion); err != nil {
		return fmt.Errorf("%w: custody: %w", ErrInvalidAddress, err)
	}
	if err := token.ValidateAddress(cfg.FundingAddress, cfg.AddressVersion); err != nil {
		return fmt.Errorf("%w: funding: %w", ErrInvalidAddress, err)
	}
	if cfg.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if cfg.DepositDeadline <= 0 {
		return ErrInvalidDeadline
	}
	if cfg.FeeRatePerKB == 0 {
		return ErrInvalidFeeRate
	}
	if cfg.DividendPercentBPS == 0 || cfg.DividendPercentBPS > 10_000 {
		return ErrInvalidDividendPercent
	}
	if cfg.MaxConcurrentBroadcasts <= 0 {
		return ErrInvalidConcurrency
	}
	if cfg.RetryAttempts <= 0 {
		return ErrInvalidRetry
	}
	return nil
}
