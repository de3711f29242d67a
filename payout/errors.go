package payout

import "errors"

var (
	// ErrBelowDust means a payment amount is under the ledger's minimum
	// transferable output value.
	ErrBelowDust = errors.New("payout: amount below dust threshold")

	// ErrInvalidAddress means a payment address failed format validation.
	ErrInvalidAddress = errors.New("payout: invalid address")

	// ErrInsufficientFunds means the funding pool cannot cover a payout
	// plus its fee.
	ErrInsufficientFunds = errors.New("payout: insufficient funds")

	// ErrNoDistributionID means the distribution was never committed and
	// cannot be settled.
	ErrNoDistributionID = errors.New("payout: distribution has no id")

	// ErrRecordNotFound means no settlement record exists for the query.
	ErrRecordNotFound = errors.New("payout: settlement record not found")
)
