package dividend

import "fmt"

// Tier is one level of a waterfall distribution: a fixed percentage of the
// pool, split pro-rata within its own holder set.
type Tier struct {
	Name       string   `json:"name"`
	PercentBPS uint32   `json:"percent_bps"`
	Holders    []Holder `json:"holders"`
}

// TierResult pairs a tier with its computed distribution.
type TierResult struct {
	Name         string        `json:"name"`
	Distribution *Distribution `json:"distribution"`
}

// WaterfallResult holds one distribution per tier. Per-tier remainders stay
// inside each tier's distribution and are never merged; Unallocated is only
// the rounding residue from slicing the pool into tier amounts.
type WaterfallResult struct {
	Tiers       []TierResult `json:"tiers"`
	Unallocated uint64       `json:"unallocated"`
}

// CalculateWaterfall slices totalAmount across ordered tiers by percentage,
// then distributes each tier's slice pro-rata within that tier. Tier
// percentages must sum to exactly 100%; anything else is rejected rather
// than normalized.
func CalculateWaterfall(totalAmount uint64, tiers []Tier, minPayment uint64) (*WaterfallResult, error) {
	var sumBPS uint64
	for _, tier := range tiers {
		sumBPS += uint64(tier.PercentBPS)
	}
	if sumBPS != BPSDenom {
		return nil, fmt.Errorf("%w: got %d bps across %d tiers", ErrTierPercent, sumBPS, len(tiers))
	}

	result := &WaterfallResult{}
	var allocated uint64
	for _, tier := range tiers {
		tierAmount := mulDiv(totalAmount, uint64(tier.PercentBPS), BPSDenom)
		allocated += tierAmount
		result.Tiers = append(result.Tiers, TierResult{
			Name:         tier.Name,
			Distribution: CalculateProRata(tierAmount, tier.Holders, minPayment),
		})
	}
	result.Unallocated = totalAmount - allocated
	return result, nil
}
