package ledger

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the ledger API.
	ErrConnectionFailed = errors.New("ledger: connection failed")

	// ErrTxNotFound indicates the requested transaction does not exist.
	ErrTxNotFound = errors.New("ledger: transaction not found")

	// ErrBroadcastRejected indicates the ledger rejected the broadcast transaction.
	ErrBroadcastRejected = errors.New("ledger: broadcast rejected")

	// ErrInvalidResponse indicates the ledger returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("ledger: invalid response")
)
