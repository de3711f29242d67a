// Package dividend turns a pool amount and a holder snapshot into a payment
// list. Every calculation is a pure function: no I/O, no clock, no
// randomness, so identical inputs always produce bitwise-identical outputs.
// All amounts are integer token units and all rounding is downward; the
// shortfall from rounding is reported as an explicit remainder, never
// dropped.
package dividend

import (
	"fmt"
	"math/bits"
	"time"
)

// BPSDenom is the basis-point denominator: 10000 bps = 100%.
const BPSDenom = 10000

// Holder is one eligible holder in a distribution input.
type Holder struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// Payment is one holder's computed payout.
type Payment struct {
	HolderID      string  `json:"holder_id"`
	Address       string  `json:"address"`
	Amount        uint64  `json:"amount"`
	ShareFraction float64 `json:"share_fraction"`
}

// Distribution is the result of one calculation. ID and CreatedAt are zero
// until the caller commits the distribution; the calculation itself never
// touches a clock.
type Distribution struct {
	ID              string    `json:"id,omitempty"`
	TotalAmount     uint64    `json:"total_amount"`
	EligibleShares  uint64    `json:"eligible_shares"`
	PerShareAmount  float64   `json:"per_share_amount"`
	Payments        []Payment `json:"payments"`
	Remainder       uint64    `json:"remainder"`
	ExcludedHolders int       `json:"excluded_holders"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// mulDiv computes floor(a * b / d) without intermediate overflow.
// d must be nonzero and the quotient must fit in 64 bits; both hold for
// every call site because b never exceeds d's scale.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

// ApplyBPS returns floor(amount * bps / 10000), the basis-point share of an
// amount.
func ApplyBPS(amount uint64, bps uint32) uint64 {
	return mulDiv(amount, uint64(bps), BPSDenom)
}

// CalculateProRata distributes totalAmount across holders in proportion to
// their balances, rounding each payment down. Holders whose computed payment
// is below minPayment (or zero) are excluded: they receive no payment, their
// computed amount joins the remainder, and they are counted in
// ExcludedHolders. With no eligible shares the whole total becomes
// remainder.
func CalculateProRata(totalAmount uint64, holders []Holder, minPayment uint64) *Distribution {
	dist := &Distribution{TotalAmount: totalAmount}

	for _, h := range holders {
		dist.EligibleShares += h.Balance
	}
	if dist.EligibleShares == 0 {
		dist.Remainder = totalAmount
		return dist
	}
	dist.PerShareAmount = float64(totalAmount) / float64(dist.EligibleShares)

	var paid uint64
	for _, h := range holders {
		if h.Balance == 0 {
			dist.ExcludedHolders++
			continue
		}
		amount := mulDiv(totalAmount, h.Balance, dist.EligibleShares)
		if amount == 0 || amount < minPayment {
			dist.ExcludedHolders++
			continue
		}
		dist.Payments = append(dist.Payments, Payment{
			HolderID:      h.ID,
			Address:       h.Address,
			Amount:        amount,
			ShareFraction: float64(h.Balance) / float64(dist.EligibleShares),
		})
		paid += amount
	}
	dist.Remainder = totalAmount - paid
	return dist
}

// Validate checks the conservation invariant: payments plus remainder must
// equal the total exactly. A failure is a calculation bug.
func Validate(d *Distribution) error {
	var paid uint64
	for _, p := range d.Payments {
		paid += p.Amount
	}
	if paid+d.Remainder != d.TotalAmount {
		return fmt.Errorf("%w: paid %d + remainder %d != total %d",
			ErrConservation, paid, d.Remainder, d.TotalAmount)
	}
	return nil
}
