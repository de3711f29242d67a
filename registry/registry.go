// Package registry tracks holder token balances for a custody pool. Each
// holder carries two disjoint ledgers: "available" (tokens acquired via
// recorded on-chain transfers) and "staked" (tokens locked by confirmed stake
// requests). Dividend calculations consume point-in-time snapshots of the
// staked ledger only; unconfirmed state never reaches the registry.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Holder is one registry entry.
type Holder struct {
	ID            string `json:"id"`
	PayoutAddress string `json:"payout_address"`
	Available     uint64 `json:"available"`
	Staked        uint64 `json:"staked"`
}

// SnapshotEntry is one holder's staked balance at snapshot time.
type SnapshotEntry struct {
	HolderID      string `json:"holder_id"`
	PayoutAddress string `json:"payout_address"`
	Staked        uint64 `json:"staked"`
}

// Snapshot is a point-in-time view of all staked balances, ordered by holder
// ID so identical registry states produce identical snapshots.
type Snapshot struct {
	Holders     []SnapshotEntry `json:"holders"`
	TotalStaked uint64          `json:"total_staked"`
}

// Store persists holder balances. Writes are owned exclusively by the stake
// reconciler; the dividend path only reads snapshots.
type Store interface {
	// Get returns the holder's entry, or ErrHolderNotFound.
	Get(holderID string) (*Holder, error)

	// CreditAvailable adds a recorded on-chain transfer to the holder's
	// available balance, creating the entry if needed. Fails with
	// ErrSupplyExceeded when the pool's issued supply would be exceeded.
	CreditAvailable(holderID string, amount uint64) error

	// ConfirmStake moves amount from the holder's available balance to its
	// staked balance and records the payout address for future
	// distributions.
	ConfirmStake(holderID, payoutAddress string, amount uint64) error

	// Snapshot returns the current staked balances, holders with zero
	// staked balance excluded.
	Snapshot() (*Snapshot, error)

	// TotalStaked returns the sum of all staked balances.
	TotalStaked() (uint64, error)
}

// MemStore is an in-memory Store for tests and single-process use.
type MemStore struct {
	mu           sync.RWMutex
	issuedSupply uint64 // 0 = uncapped
	holders      map[string]*Holder
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory registry. issuedSupply caps the sum
// of all balances; zero disables the cap.
func NewMemStore(issuedSupply uint64) *MemStore {
	return &MemStore{
		issuedSupply: issuedSupply,
		holders:      make(map[string]*Holder),
	}
}

// Get returns the holder's entry, or ErrHolderNotFound.
func (s *MemStore) Get(holderID string) (*Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holders[holderID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHolderNotFound, holderID)
	}
	cp := *h
	return &cp, nil
}

// CreditAvailable adds amount to the holder's available balance.
func (s *MemStore) CreditAvailable(holderID string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.issuedSupply > 0 {
		var total uint64
		for _, h := range s.holders {
			total += h.Available + h.Staked
		}
		if total+amount > s.issuedSupply {
			return fmt.Errorf("%w: total %d + %d > supply %d",
				ErrSupplyExceeded, total, amount, s.issuedSupply)
		}
	}

	h, ok := s.holders[holderID]
	if !ok {
		h = &Holder{ID: holderID}
		s.holders[holderID] = h
	}
	h.Available += amount
	return nil
}

// ConfirmStake moves amount from available to staked.
func (s *MemStore) ConfirmStake(holderID, payoutAddress string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holders[holderID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrHolderNotFound, holderID)
	}
	if h.Available < amount {
		return fmt.Errorf("%w: available %d < %d", ErrInsufficientAvailable, h.Available, amount)
	}
	h.Available -= amount
	h.Staked += amount
	if payoutAddress != "" {
		h.PayoutAddress = payoutAddress
	}
	return nil
}

// Snapshot returns the current staked balances ordered by holder ID.
func (s *MemStore) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{}
	for _, h := range s.holders {
		if h.Staked == 0 {
			continue
		}
		snap.Holders = append(snap.Holders, SnapshotEntry{
			HolderID:      h.ID,
			PayoutAddress: h.PayoutAddress,
			Staked:        h.Staked,
		})
		snap.TotalStaked += h.Staked
	}
	sort.Slice(snap.Holders, func(i, j int) bool {
		return snap.Holders[i].HolderID < snap.Holders[j].HolderID
	})
	return snap, nil
}

// TotalStaked returns the sum of all staked balances.
func (s *MemStore) TotalStaked() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, h := range s.holders {
		total += h.Staked
	}
	return total, nil
}
