package stake

import "errors"

var (
	// ErrDuplicateRequest means a stake request with the same ID already
	// exists.
	ErrDuplicateRequest = errors.New("stake: duplicate request")

	// ErrRequestNotFound means no stake request exists for the given ID.
	ErrRequestNotFound = errors.New("stake: request not found")

	// ErrNotPending means the operation requires a request that is still
	// awaiting its deposit.
	ErrNotPending = errors.New("stake: request not pending")

	// ErrTxIDClaimed means the deposit transaction is already claimed by
	// another stake request.
	ErrTxIDClaimed = errors.New("stake: deposit txid already claimed")

	// ErrZeroAmount rejects zero-valued stake requests.
	ErrZeroAmount = errors.New("stake: zero amount")
)
