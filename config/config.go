package config

import "time"

// PoolConfig holds the externally supplied configuration for one custody
// pool. The pipeline never computes these values; they arrive from the
// operator (flags, env, or a config file) and are validated once at startup.
type PoolConfig struct {
	// CustodyAddress is the well-known deposit address for this pool.
	CustodyAddress string `json:"custody_address"`

	// FundingAddress holds the operating funds that pay dividend outputs
	// and transaction fees.
	FundingAddress string `json:"funding_address"`

	// Ticker is the token identifier whose transfer markers this pool tracks.
	Ticker string `json:"ticker"`

	// AddressVersion is the ledger's P2PKH version byte (0x00 mainnet).
	AddressVersion byte `json:"address_version"`

	// PollInterval is the deposit indexer cadence.
	PollInterval time.Duration `json:"poll_interval"`

	// DepositTolerance is the absolute variance allowed when matching a
	// deposit amount against a stake request's expected amount.
	DepositTolerance uint64 `json:"deposit_tolerance"`

	// DepositDeadline is how long a stake request waits for its deposit
	// before expiring.
	DepositDeadline time.Duration `json:"deposit_deadline"`

	// FeeRatePerKB is the payout fee rate in satoshis per kilobyte.
	FeeRatePerKB uint64 `json:"fee_rate_per_kb"`

	// DustLimit is the ledger's minimum transferable output value.
	DustLimit uint64 `json:"dust_limit"`

	// MinPayment excludes holders whose computed dividend falls below it.
	MinPayment uint64 `json:"min_payment"`

	// DividendPercentBPS is the share of accumulated pool revenue paid out
	// as dividends, in basis points (7500 = 75%); the rest stays with the
	// operator.
	DividendPercentBPS uint32 `json:"dividend_percent_bps"`

	// DistributionThreshold triggers an automatic distribution when the
	// pool balance reaches it. Zero disables the automatic trigger.
	DistributionThreshold uint64 `json:"distribution_threshold"`

	// MaxConcurrentBroadcasts bounds payout broadcast fan-out.
	MaxConcurrentBroadcasts int `json:"max_concurrent_broadcasts"`

	// RetryAttempts is the per-payment broadcast retry budget.
	RetryAttempts int `json:"retry_attempts"`

	// RetryDelay is the pause between broadcast retries.
	RetryDelay time.Duration `json:"retry_delay"`
}

// DefaultPoolConfig returns a PoolConfig with operational defaults applied.
// Addresses and ticker have no defaults and must be supplied.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		AddressVersion:          0x00,
		PollInterval:            30 * time.Second,
		DepositDeadline:         24 * time.Hour,
		FeeRatePerKB:            1,
		DustLimit:               546,
		DividendPercentBPS:      10_000,
		MaxConcurrentBroadcasts: 4,
		RetryAttempts:           3,
		RetryDelay:              5 * time.Second,
	}
}
