package registry

import "errors"

var (
	// ErrHolderNotFound indicates the holder has no registry entry.
	ErrHolderNotFound = errors.New("registry: holder not found")

	// ErrZeroAmount indicates a zero-amount credit or stake was attempted.
	ErrZeroAmount = errors.New("registry: zero amount")

	// ErrSupplyExceeded indicates a credit would push total balances past the
	// issued supply.
	ErrSupplyExceeded = errors.New("registry: issued supply exceeded")

	// ErrInsufficientAvailable indicates a stake confirmation exceeds the
	// holder's available balance.
	ErrInsufficientAvailable = errors.New("registry: insufficient available balance")
)
