package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "registry.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func eachStore(t *testing.T, supply uint64, fn func(t *testing.T, s Store)) {
	t.Run("mem", func(t *testing.T) {
		fn(t, NewMemStore(supply))
	})
	t.Run("bolt", func(t *testing.T) {
		s, err := NewBoltStore(openTestDB(t), supply)
		require.NoError(t, err)
		fn(t, s)
	})
}

func TestCreditAvailable(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		require.NoError(t, s.CreditAvailable("alice", 1000))
		require.NoError(t, s.CreditAvailable("alice", 500))

		h, err := s.Get("alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1500), h.Available)
		assert.Equal(t, uint64(0), h.Staked)
	})
}

func TestCreditAvailableZeroAmount(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		require.ErrorIs(t, s.CreditAvailable("alice", 0), ErrZeroAmount)
	})
}

func TestCreditAvailableSupplyCap(t *testing.T) {
	eachStore(t, 1000, func(t *testing.T, s Store) {
		require.NoError(t, s.CreditAvailable("alice", 600))
		require.NoError(t, s.CreditAvailable("bob", 400))
		require.ErrorIs(t, s.CreditAvailable("carol", 1), ErrSupplyExceeded)

		// Staked balances count against the cap too.
		require.NoError(t, s.ConfirmStake("alice", "addr-a", 600))
		require.ErrorIs(t, s.CreditAvailable("carol", 1), ErrSupplyExceeded)
	})
}

func TestGetUnknownHolder(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		_, err := s.Get("nobody")
		require.ErrorIs(t, err, ErrHolderNotFound)
	})
}

func TestConfirmStake(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		require.NoError(t, s.CreditAvailable("alice", 1000))
		require.NoError(t, s.ConfirmStake("alice", "addr-a", 700))

		h, err := s.Get("alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(300), h.Available)
		assert.Equal(t, uint64(700), h.Staked)
		assert.Equal(t, "addr-a", h.PayoutAddress)
	})
}

func TestConfirmStakeErrors(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		require.ErrorIs(t, s.ConfirmStake("nobody", "addr", 1), ErrHolderNotFound)

		require.NoError(t, s.CreditAvailable("alice", 100))
		require.ErrorIs(t, s.ConfirmStake("alice", "addr", 0), ErrZeroAmount)
		require.ErrorIs(t, s.ConfirmStake("alice", "addr", 101), ErrInsufficientAvailable)

		// Failed stake leaves balances untouched.
		h, err := s.Get("alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), h.Available)
		assert.Equal(t, uint64(0), h.Staked)
	})
}

func TestSnapshotOrderingAndExclusion(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		require.NoError(t, s.CreditAvailable("carol", 300))
		require.NoError(t, s.CreditAvailable("alice", 100))
		require.NoError(t, s.CreditAvailable("bob", 200))

		require.NoError(t, s.ConfirmStake("carol", "addr-c", 300))
		require.NoError(t, s.ConfirmStake("alice", "addr-a", 100))
		// bob never stakes, so the snapshot must exclude him.

		snap, err := s.Snapshot()
		require.NoError(t, err)
		require.Len(t, snap.Holders, 2)
		assert.Equal(t, "alice", snap.Holders[0].HolderID)
		assert.Equal(t, "carol", snap.Holders[1].HolderID)
		assert.Equal(t, uint64(400), snap.TotalStaked)

		total, err := s.TotalStaked()
		require.NoError(t, err)
		assert.Equal(t, uint64(400), total)
	})
}

func TestSnapshotIsPointInTime(t *testing.T) {
	eachStore(t, 0, func(t *testing.T, s Store) {
		require.NoError(t, s.CreditAvailable("alice", 500))
		require.NoError(t, s.ConfirmStake("alice", "addr-a", 500))

		snap, err := s.Snapshot()
		require.NoError(t, err)

		require.NoError(t, s.CreditAvailable("alice", 500))
		require.NoError(t, s.ConfirmStake("alice", "addr-a", 500))

		// The earlier snapshot still reflects the state at capture time.
		assert.Equal(t, uint64(500), snap.TotalStaked)
	})
}

func TestBoltStoreReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.db")

	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	s, err := NewBoltStore(db, 0)
	require.NoError(t, err)
	require.NoError(t, s.CreditAvailable("alice", 1000))
	require.NoError(t, s.ConfirmStake("alice", "addr-a", 400))
	require.NoError(t, db.Close())

	db, err = bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	s, err = NewBoltStore(db, 0)
	require.NoError(t, err)

	h, err := s.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), h.Available)
	assert.Equal(t, uint64(400), h.Staked)
	assert.Equal(t, "addr-a", h.PayoutAddress)
}
