package config

import "errors"

var (
	// ErrEmptyCustodyAddress indicates no custody address was configured.
	ErrEmptyCustodyAddress = errors.New("config: custody address must not be empty")

	// ErrEmptyFundingAddress indicates no funding address was configured.
	ErrEmptyFundingAddress = errors.New("config: funding address must not be empty")

	// ErrEmptyTicker indicates no token ticker was configured.
	ErrEmptyTicker = errors.New("config: token ticker must not be empty")

	// ErrInvalidPollInterval indicates the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("config: poll interval must be positive")

	// ErrInvalidDeadline indicates the deposit deadline is not positive.
	ErrInvalidDeadline = errors.New("config: deposit deadline must be positive")

	// ErrInvalidFeeRate indicates the fee rate is zero.
	ErrInvalidFeeRate = errors.New("config: fee rate must be positive")

	// ErrInvalidDividendPercent indicates the dividend percentage is out of range.
	ErrInvalidDividendPercent = errors.New("config: dividend percent must be 1..10000 basis points")

	// ErrInvalidConcurrency indicates the broadcast concurrency bound is not positive.
	ErrInvalidConcurrency = errors.New("config: max concurrent broadcasts must be positive")

	// ErrInvalidRetry indicates the retry attempts budget is not positive.
	ErrInvalidRetry = errors.New("config: retry attempts must be positive")

	// ErrInvalidAddress indicates a configured address failed validation.
	ErrInvalidAddress = errors.New("config: invalid address")
)
