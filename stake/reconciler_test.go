package stake

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0ase/libcustody-go/audit"
	"github.com/b0ase/libcustody-go/registry"
)

func newTestReconciler(t *testing.T, cfg ReconcilerConfig) (*Reconciler, Store, registry.Store, *audit.MemorySink, *clockwork.FakeClock) {
	t.Helper()
	store := NewMemStore()
	reg := registry.NewMemStore(0)
	sink := audit.NewMemorySink()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0).UTC())
	r := NewReconciler(cfg, store, reg, sink, clock, nil)
	return r, store, reg, sink, clock
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	r, store, _, _, clock := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       1000,
		DepositDeadline: 24 * time.Hour,
	})

	req, err := r.Submit("alice", "addr-a", 50_000)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, StatusPendingDeposit, req.Status)
	assert.Equal(t, clock.Now().UTC(), req.CreatedAt)
	assert.Equal(t, clock.Now().UTC().Add(24*time.Hour), req.DepositDeadline)

	stored, err := store.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.OwnerID)

	_, err = r.Submit("alice", "addr-a", 0)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestApplyDepositsToleranceMatching(t *testing.T) {
	r, store, reg, sink, _ := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       1000,
		DepositDeadline: 24 * time.Hour,
	})

	req, err := r.Submit("alice", "addr-a", 50_000)
	require.NoError(t, err)

	// 52_000 is outside the 1000 tolerance and must not match.
	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-far", Amount: 52_000}}))
	got, err := store.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingDeposit, got.Status)

	// 50_800 is within tolerance and confirms the stake at the deposited
	// amount, not the expected one.
	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-near", Amount: 50_800}}))
	got, err = store.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, "tx-near", got.DepositTxID)
	assert.Equal(t, uint64(50_800), got.ConfirmedAmount)

	h, err := reg.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50_800), h.Staked)
	assert.Equal(t, uint64(0), h.Available)
	assert.Equal(t, "addr-a", h.PayoutAddress)

	events := sink.ByType(audit.EventStakeConfirmed)
	require.Len(t, events, 1)
	assert.Equal(t, req.ID, events[0].Ref)
	assert.Equal(t, "50800", events[0].Attrs["amount"])
}

func TestApplyDepositsOldestFirst(t *testing.T) {
	r, store, _, _, clock := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       1000,
		DepositDeadline: 24 * time.Hour,
	})

	first, err := r.Submit("alice", "addr-a", 50_000)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := r.Submit("bob", "addr-b", 50_000)
	require.NoError(t, err)

	// Both requests are in range; the older one wins.
	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-1", Amount: 50_000}}))

	got, err := store.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	got, err = store.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingDeposit, got.Status)

	// The next deposit falls through to the younger request.
	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-2", Amount: 50_000}}))
	got, err = store.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestApplyDepositsReplayIsIdempotent(t *testing.T) {
	r, _, reg, sink, _ := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       0,
		DepositDeadline: 24 * time.Hour,
	})

	_, err := r.Submit("alice", "addr-a", 10_000)
	require.NoError(t, err)

	deposits := []Deposit{{TxID: "tx-1", Amount: 10_000}}
	require.NoError(t, r.ApplyDeposits(deposits))
	require.NoError(t, r.ApplyDeposits(deposits))
	require.NoError(t, r.ApplyDeposits(deposits))

	h, err := reg.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), h.Staked)
	assert.Len(t, sink.ByType(audit.EventStakeConfirmed), 1)
}

func TestApplyDepositsResumesInterruptedSettle(t *testing.T) {
	r, store, reg, _, _ := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       0,
		DepositDeadline: 24 * time.Hour,
	})

	req, err := r.Submit("alice", "addr-a", 10_000)
	require.NoError(t, err)

	// Simulate a crash after the claim was made durable but before the
	// registry saw the amount.
	require.NoError(t, store.ClaimDeposit(req.ID, "tx-1", 10_000))

	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-1", Amount: 10_000}}))

	got, err := store.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	h, err := reg.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), h.Staked)
}

func TestUnmatchedDepositIsNotAnError(t *testing.T) {
	r, _, _, sink, _ := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       0,
		DepositDeadline: 24 * time.Hour,
	})

	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-orphan", Amount: 123}}))
	assert.Empty(t, sink.Events())
}

func TestExpireOverdue(t *testing.T) {
	r, store, _, sink, clock := newTestReconciler(t, ReconcilerConfig{
		Tolerance:       0,
		DepositDeadline: time.Hour,
	})

	overdue, err := r.Submit("alice", "addr-a", 1000)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	fresh, err := r.Submit("bob", "addr-b", 2000)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute) // past alice's deadline, not bob's

	n, err := r.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	got, err = store.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingDeposit, got.Status)

	events := sink.ByType(audit.EventStakeExpired)
	require.Len(t, events, 1)
	assert.Equal(t, overdue.ID, events[0].Ref)

	// An expired request never matches a late deposit.
	require.NoError(t, r.ApplyDeposits([]Deposit{{TxID: "tx-late", Amount: 1000}}))
	got, err = store.Get(overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}
