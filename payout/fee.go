package payout

import (
	"fmt"

	"github.com/b0ase/libcustody-go/dividend"
	"github.com/b0ase/libcustody-go/token"
)

const (
	// DustLimit is the minimum P2PKH output value in satoshis.
	DustLimit = uint64(546)

	// DefaultFeeRate is the default fee rate in sat/KB.
	DefaultFeeRate = uint64(1)

	// Per-element size costs for fee estimation:
	// base: version(4) + locktime(4) + input count varint(1) + output count varint(1)
	// input: prevhash(32) + previndex(4) + scriptlen varint(1) + script(~107 for P2PKH) + sequence(4)
	// output: value(8) + scriptlen varint(1) + script(~25 for P2PKH)
	txBaseSize   = 10
	txInputSize  = 148
	txOutputSize = 34
)

// EstimateTxSize estimates transaction size in bytes from input and output
// counts. extraBytes covers non-standard output scripts (the token transfer
// envelope) beyond the plain P2PKH estimate.
func EstimateTxSize(numInputs, numOutputs, extraBytes int) int {
	return txBaseSize + numInputs*txInputSize + numOutputs*txOutputSize + extraBytes
}

// EstimateFee returns ceil(txSizeBytes * feeRate / 1000) for a sat/KB rate.
func EstimateFee(txSizeBytes int, feeRate uint64) uint64 {
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	return (uint64(txSizeBytes)*feeRate + 999) / 1000
}

// ValidatePayment checks one payment against ledger constraints: the address
// must decode under the expected version byte and the amount must clear the
// dust threshold. Validation of one payment is independent of every other
// payment in the batch.
func ValidatePayment(p dividend.Payment, addressVersion byte, dust uint64) error {
	if err := token.ValidateAddress(p.Address, addressVersion); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidAddress, p.Address, err)
	}
	if p.Amount < dust {
		return fmt.Errorf("%w: %d < %d", ErrBelowDust, p.Amount, dust)
	}
	return nil
}
