package dividend

import "errors"

var (
	// ErrTierPercent means the waterfall tier percentages do not sum to
	// exactly 100%.
	ErrTierPercent = errors.New("dividend: tier percentages must sum to 100%")

	// ErrFixedExceedsTotal means the fixed amounts in a split exceed the
	// pool total.
	ErrFixedExceedsTotal = errors.New("dividend: fixed amounts exceed total")

	// ErrSplitRecipient means a split recipient is malformed: it must take
	// exactly one of a fixed amount or a percentage, and pay exactly one
	// of a direct address or a holder group.
	ErrSplitRecipient = errors.New("dividend: malformed split recipient")

	// ErrSplitPercent means the percentage recipients of a split claim
	// more than 100% of the post-fixed remainder.
	ErrSplitPercent = errors.New("dividend: split percentages exceed 100%")

	// ErrConservation means a distribution's payments plus remainder do
	// not equal its total. It indicates a calculation bug, not bad input.
	ErrConservation = errors.New("dividend: conservation violated")
)
