package payout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0ase/libcustody-go/ledger"
)

func fundingService(utxos []*ledger.UTXO) *ledger.MockService {
	return &ledger.MockService{
		ListUnspentFn: func(ctx context.Context, address string) ([]*ledger.UTXO, error) {
			return utxos, nil
		},
	}
}

func TestSelectLargestFirst(t *testing.T) {
	svc := fundingService([]*ledger.UTXO{
		{TxID: "aa", Vout: 0, Amount: 1000},
		{TxID: "bb", Vout: 0, Amount: 50_000},
		{TxID: "cc", Vout: 0, Amount: 200},
	})
	s := NewSelector(svc, "funding")

	sel, err := s.Select(context.Background(), 10_000, 2, 0, 1)
	require.NoError(t, err)
	require.Len(t, sel.UTXOs, 1)
	assert.Equal(t, "bb", sel.UTXOs[0].TxID)
	assert.Equal(t, uint64(1), sel.Fee) // 1 input, 2 outputs, well under 1KB
	assert.Equal(t, uint64(50_000-10_000)-sel.Fee, sel.Change)
}

func TestSelectAccumulatesUntilCovered(t *testing.T) {
	svc := fundingService([]*ledger.UTXO{
		{TxID: "aa", Vout: 0, Amount: 600},
		{TxID: "bb", Vout: 0, Amount: 500},
		{TxID: "cc", Vout: 0, Amount: 400},
	})
	s := NewSelector(svc, "funding")

	sel, err := s.Select(context.Background(), 1000, 2, 0, 1)
	require.NoError(t, err)
	require.Len(t, sel.UTXOs, 2)
	assert.Equal(t, "aa", sel.UTXOs[0].TxID)
	assert.Equal(t, "bb", sel.UTXOs[1].TxID)
}

func TestSelectReservesAcrossCalls(t *testing.T) {
	svc := fundingService([]*ledger.UTXO{
		{TxID: "aa", Vout: 0, Amount: 5000},
		{TxID: "bb", Vout: 0, Amount: 5000},
	})
	s := NewSelector(svc, "funding")

	first, err := s.Select(context.Background(), 1000, 2, 0, 1)
	require.NoError(t, err)
	second, err := s.Select(context.Background(), 1000, 2, 0, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.UTXOs[0].TxID, second.UTXOs[0].TxID)

	// Pool exhausted until something is released.
	_, err = s.Select(context.Background(), 1000, 2, 0, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	s.Release(first)
	third, err := s.Select(context.Background(), 1000, 2, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, first.UTXOs[0].TxID, third.UTXOs[0].TxID)
}

func TestSelectInsufficientFunds(t *testing.T) {
	svc := fundingService([]*ledger.UTXO{
		{TxID: "aa", Vout: 0, Amount: 100},
	})
	s := NewSelector(svc, "funding")

	_, err := s.Select(context.Background(), 10_000, 2, 0, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// A failed selection must not leave anything reserved.
	sel, err := s.Select(context.Background(), 50, 2, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "aa", sel.UTXOs[0].TxID)
}
