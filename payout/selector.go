package payout

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/b0ase/libcustody-go/ledger"
)

// Selector picks funding UTXOs for payout transactions. Selection is
// serialized and selected outpoints stay reserved until released, so
// concurrent payouts never double-spend the shared funding pool.
type Selector struct {
	svc            ledger.Service
	fundingAddress string

	mu       sync.Mutex
	reserved map[string]struct{} // "txid:vout"
}

// NewSelector creates a selector over the funding address's UTXO set.
func NewSelector(svc ledger.Service, fundingAddress string) *Selector {
	return &Selector{
		svc:            svc,
		fundingAddress: fundingAddress,
		reserved:       make(map[string]struct{}),
	}
}

func outpoint(u *ledger.UTXO) string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Selection is the outcome of one funding selection.
type Selection struct {
	UTXOs  []*ledger.UTXO
	Fee    uint64
	Change uint64
}

// Select reserves enough funding UTXOs to cover target satoshis plus the fee
// for a transaction with the given output count (change output included in
// the estimate). Largest UTXOs are taken first to keep input counts, and so
// fees, low. The caller must Release the selection if it does not spend it.
func (s *Selector) Select(ctx context.Context, target uint64, numOutputs, extraBytes int, feeRate uint64) (*Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unspent, err := s.svc.ListUnspent(ctx, s.fundingAddress)
	if err != nil {
		return nil, fmt.Errorf("list unspent: %w", err)
	}

	available := make([]*ledger.UTXO, 0, len(unspent))
	for _, u := range unspent {
		if _, taken := s.reserved[outpoint(u)]; !taken {
			available = append(available, u)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Amount > available[j].Amount })

	var picked []*ledger.UTXO
	var sum, fee uint64
	for _, u := range available {
		picked = append(picked, u)
		sum += u.Amount
		fee = EstimateFee(EstimateTxSize(len(picked), numOutputs, extraBytes), feeRate)
		if sum >= target+fee {
			for _, p := range picked {
				s.reserved[outpoint(p)] = struct{}{}
			}
			return &Selection{
				UTXOs:  picked,
				Fee:    fee,
				Change: sum - target - fee,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: need %d + fee, have %d across %d utxos",
		ErrInsufficientFunds, target, sum, len(available))
}

// Release returns a selection's outpoints to the available pool. Call it
// when a selected transaction was not broadcast, or when the ledger
// definitively rejected it.
func (s *Selector) Release(sel *Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range sel.UTXOs {
		delete(s.reserved, outpoint(u))
	}
}
