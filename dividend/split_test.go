package dividend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSplit_FixedThenPercent(t *testing.T) {
	recipients := []SplitRecipient{
		{Name: "ops", FixedAmount: 2000, Address: "addr-ops"},
		{Name: "founder", PercentBPS: 2500, Address: "addr-f"},
		{Name: "holders", PercentBPS: 7500, Holders: []Holder{
			{ID: "A", Address: "a", Balance: 2},
			{ID: "B", Address: "b", Balance: 1},
		}},
	}

	result, err := CalculateSplit(10_000, recipients, 0)
	require.NoError(t, err)
	require.Len(t, result.Shares, 3)

	// Fixed comes off the top; percentages apply to the 8000 remainder.
	assert.Equal(t, uint64(2000), result.Shares[0].Amount)
	require.NotNil(t, result.Shares[0].Payment)
	assert.Equal(t, "addr-ops", result.Shares[0].Payment.Address)

	assert.Equal(t, uint64(2000), result.Shares[1].Amount) // 25% of 8000
	assert.Equal(t, uint64(6000), result.Shares[2].Amount) // 75% of 8000

	group := result.Shares[2].Distribution
	require.NotNil(t, group)
	require.NoError(t, Validate(group))
	assert.Equal(t, uint64(4000), group.Payments[0].Amount)
	assert.Equal(t, uint64(2000), group.Payments[1].Amount)

	assert.Equal(t, uint64(0), result.Unallocated)
}

func TestCalculateSplit_FixedExceedsTotal(t *testing.T) {
	recipients := []SplitRecipient{
		{Name: "a", FixedAmount: 600, Address: "addr-a"},
		{Name: "b", FixedAmount: 500, Address: "addr-b"},
	}
	_, err := CalculateSplit(1000, recipients, 0)
	require.ErrorIs(t, err, ErrFixedExceedsTotal)
}

func TestCalculateSplit_PercentOver100(t *testing.T) {
	recipients := []SplitRecipient{
		{Name: "a", PercentBPS: 6000, Address: "addr-a"},
		{Name: "b", PercentBPS: 5000, Address: "addr-b"},
	}
	_, err := CalculateSplit(1000, recipients, 0)
	require.ErrorIs(t, err, ErrSplitPercent)
}

func TestCalculateSplit_MalformedRecipient(t *testing.T) {
	tests := []struct {
		name string
		r    SplitRecipient
	}{
		{"neither fixed nor percent", SplitRecipient{Name: "x", Address: "a"}},
		{"both fixed and percent", SplitRecipient{Name: "x", FixedAmount: 1, PercentBPS: 1, Address: "a"}},
		{"neither address nor holders", SplitRecipient{Name: "x", FixedAmount: 1}},
		{"both address and holders", SplitRecipient{Name: "x", FixedAmount: 1, Address: "a", Holders: []Holder{{ID: "A"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateSplit(1000, []SplitRecipient{tt.r}, 0)
			require.ErrorIs(t, err, ErrSplitRecipient)
		})
	}
}

func TestCalculateSplit_PartialPercentLeavesUnallocated(t *testing.T) {
	recipients := []SplitRecipient{
		{Name: "a", FixedAmount: 100, Address: "addr-a"},
		{Name: "b", PercentBPS: 5000, Address: "addr-b"},
	}

	result, err := CalculateSplit(1100, recipients, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), result.Shares[0].Amount)
	assert.Equal(t, uint64(500), result.Shares[1].Amount)
	assert.Equal(t, uint64(500), result.Unallocated)
}
