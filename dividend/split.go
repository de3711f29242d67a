package dividend

import "fmt"

// SplitRecipient is one entry in a fixed+percentage split. Exactly one of
// FixedAmount or PercentBPS must be set, and exactly one of Address or
// Holders. A direct address receives a single payment; a holder group is
// split pro-rata.
type SplitRecipient struct {
	Name        string   `json:"name"`
	FixedAmount uint64   `json:"fixed_amount,omitempty"`
	PercentBPS  uint32   `json:"percent_bps,omitempty"`
	Address     string   `json:"address,omitempty"`
	Holders     []Holder `json:"holders,omitempty"`
}

// SplitShare is one recipient's computed allocation. Payment is set for
// direct payees, Distribution for holder groups.
type SplitShare struct {
	Name         string        `json:"name"`
	Amount       uint64        `json:"amount"`
	Payment      *Payment      `json:"payment,omitempty"`
	Distribution *Distribution `json:"distribution,omitempty"`
}

// SplitResult is the outcome of a fixed+percentage split. Unallocated is
// whatever the percentage recipients' rounding and any sub-100% percentage
// coverage left behind.
type SplitResult struct {
	Shares      []SplitShare `json:"shares"`
	Unallocated uint64       `json:"unallocated"`
}

// CalculateSplit allocates totalAmount across recipients: fixed amounts are
// deducted first, in listed order, then percentage recipients divide what
// remains. Fixed amounts exceeding the total, or percentages exceeding 100%,
// are hard validation errors.
func CalculateSplit(totalAmount uint64, recipients []SplitRecipient, minPayment uint64) (*SplitResult, error) {
	var fixedSum, percentBPS uint64
	for _, r := range recipients {
		if (r.FixedAmount == 0) == (r.PercentBPS == 0) {
			return nil, fmt.Errorf("%w: %q must take exactly one of fixed or percent", ErrSplitRecipient, r.Name)
		}
		if (r.Address == "") == (len(r.Holders) == 0) {
			return nil, fmt.Errorf("%w: %q must pay exactly one of address or holders", ErrSplitRecipient, r.Name)
		}
		fixedSum += r.FixedAmount
		percentBPS += uint64(r.PercentBPS)
	}
	if fixedSum > totalAmount {
		return nil, fmt.Errorf("%w: fixed %d > total %d", ErrFixedExceedsTotal, fixedSum, totalAmount)
	}
	if percentBPS > BPSDenom {
		return nil, fmt.Errorf("%w: got %d bps", ErrSplitPercent, percentBPS)
	}

	afterFixed := totalAmount - fixedSum
	result := &SplitResult{}
	var allocated uint64
	for _, r := range recipients {
		amount := r.FixedAmount
		if amount == 0 {
			amount = mulDiv(afterFixed, uint64(r.PercentBPS), BPSDenom)
		}
		allocated += amount

		share := SplitShare{Name: r.Name, Amount: amount}
		if r.Address != "" {
			var fraction float64
			if totalAmount > 0 {
				fraction = float64(amount) / float64(totalAmount)
			}
			share.Payment = &Payment{
				HolderID:      r.Name,
				Address:       r.Address,
				Amount:        amount,
				ShareFraction: fraction,
			}
		} else {
			share.Distribution = CalculateProRata(amount, r.Holders, minPayment)
		}
		result.Shares = append(result.Shares, share)
	}
	result.Unallocated = totalAmount - allocated
	return result, nil
}
